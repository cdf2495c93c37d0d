package queue

// This file contains the background consumer that listens to the
// booking.confirmed and booking.reversal queues and writes structured
// lines to logs/booking.log.  It is the development stand-in for the
// platform's notification module; production deployments point the
// real consumer at the same queues.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartBookingConsumer connects to RabbitMQ, declares both booking
// queues (durable) and starts consuming.  Each message is appended to
// logs/booking.log in a single-line, human-friendly format.  The
// function runs a reconnect loop with backoff and keeps running for
// the life of the process; processing errors reject the offending
// message without requeueing so a poison message cannot loop.
func StartBookingConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{confirmedQueueName, reversalQueueName} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	confirmed, err := ch.Consume(confirmedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", confirmedQueueName, err)
	}
	reversals, err := ch.Consume(reversalQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", reversalQueueName, err)
	}

	for {
		select {
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("confirmed deliveries channel closed")
			}
			ackOrReject(d, handleConfirmed(d.Body))
		case d, ok := <-reversals:
			if !ok {
				return errors.New("reversal deliveries channel closed")
			}
			ackOrReject(d, handleReversal(d.Body))
		}
	}
}

func ackOrReject(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("booking-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func handleConfirmed(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	codes := "[]"
	if len(ev.TicketCodes) > 0 {
		codes = fmt.Sprintf("[%s]", strings.Join(ev.TicketCodes, ","))
	}
	line := fmt.Sprintf("[%s] Booking confirmed | booking=%s | ref=%s | poi=%d | date=%s | qty=%d | total=%d %s | guest=%s | tickets=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.Reference, ev.POIID, ev.Date, ev.Quantity, ev.TotalAmountCents, ev.Currency, ev.GuestEmail, codes)
	return appendLog(line)
}

func handleReversal(body []byte) error {
	var ev ReversalRequiredEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] REVERSAL REQUIRED | booking=%s | ref=%s | payment_tx=%s | amount=%d %s | guest=%s\n",
		ev.FlaggedAt, ev.BookingID, ev.Reference, ev.PaymentTxID, ev.TotalAmountCents, ev.Currency, ev.GuestEmail)
	return appendLog(line)
}

func appendLog(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "booking.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
