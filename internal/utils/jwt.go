package utils // package utils provides helpers for token creation and key hashing

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceToken represents a signed JWT for a validator device along
// with its expiry.  Devices present it on every scan; it is short
// lived and re-obtained through the device login endpoint.
type DeviceToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RoleValidator is the role claim carried by device tokens.  The
// validate endpoint requires it.
const RoleValidator = "VALIDATOR"

// NewDeviceToken builds and signs an HS256 JWT for a validator
// device.  The JWT carries the device id as subject, the VALIDATOR
// role, the POI the device is pinned to (0 means any), expiration and
// issued-at.
func NewDeviceToken(secret, deviceID string, poiID uint64, ttlMin int) (DeviceToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  deviceID,
		"role": RoleValidator,
		"poi":  poiID,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return DeviceToken{}, err
	}
	return DeviceToken{Token: signed, Exp: exp}, nil
}
