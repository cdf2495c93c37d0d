package config // package config loads application configuration from environment variables

import (
	"log"      // log is used to report configuration errors and halt execution
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"time"     // time parses durations for hold and sweep settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// timeouts.  Storage is selected with STORE_BACKEND: "mysql" (default)
// or "memory" for single-node setups without a database.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	StoreBackend   string        // "mysql" or "memory"
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign validator device JWTs
	DeviceTTLMin   int           // validator device token time-to-live in minutes
	TicketSecret   string        // server-side secret for ticket code signing
	HoldDuration   time.Duration // how long a hold claims capacity
	SweepInterval  time.Duration // how often the expiry sweep runs
	PaymentBaseURL string        // payment module base URL ("" enables the stub)
	PaymentAPIKey  string        // api key for the payment module
	ReturnURL      string        // where the payment module sends the guest back
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database variables
// are only required when the mysql backend is selected.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),                         // environment (dev/test/prod)
		Port:           must("APP_PORT"),                        // port to bind the HTTP server
		StoreBackend:   getenv("STORE_BACKEND", "mysql"),        // persistence backend
		JWTSecret:      must("JWT_SECRET"),                      // secret for device JWTs
		DeviceTTLMin:   envInt("DEVICE_TOKEN_TTL_MIN", 720),     // device token TTL (12h default)
		TicketSecret:   must("TICKET_SECRET"),                   // ticket code signing secret
		HoldDuration:   envDur("HOLD_DURATION", 15*time.Minute), // reservation hold duration
		SweepInterval:  envDur("SWEEP_INTERVAL", time.Minute),   // expiry sweep cadence
		PaymentBaseURL: os.Getenv("PAYMENT_BASE_URL"),           // empty selects the stub collaborator
		PaymentAPIKey:  os.Getenv("PAYMENT_API_KEY"),            // api key for the payment module
		ReturnURL:      getenv("PAYMENT_RETURN_URL", "https://texelmaps.example/booking/return"),
	}
	if cfg.StoreBackend == "mysql" {
		cfg.DBUser = must("DB_USER")      // database user
		cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
		cfg.DBHost = must("DB_HOST")      // database host
		cfg.DBPort = must("DB_PORT")      // database port
		cfg.DBName = must("DB_NAME")      // database name
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt reads an integer variable, falling back to a default when it
// is unset and exiting when it is present but unparsable.
func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envDur reads a duration variable ("15m", "90s"), falling back to a
// default when it is unset and exiting when it is unparsable.
func envDur(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
