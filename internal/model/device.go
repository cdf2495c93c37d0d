package model

import "time"

// ValidatorDevice is a gate scanner authorised to validate tickets.
// Devices authenticate with their id plus a provisioning key; only a
// bcrypt hash of the key is stored.  Successful login yields a short
// lived JWT carrying the VALIDATOR role.
type ValidatorDevice struct {
	ID         string    // validator_devices.id
	POIID      uint64    // validator_devices.poi_id (0 = any POI)
	Label      string    // validator_devices.label
	KeyHash    string    // validator_devices.key_hash (bcrypt)
	Active     bool      // validator_devices.active
	CreatedAt  time.Time // validator_devices.created_at
	LastSeenAt time.Time // validator_devices.last_seen_at
}
