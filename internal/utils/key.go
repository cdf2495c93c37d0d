package utils

import "golang.org/x/crypto/bcrypt"

// HashProvisioningKey returns the bcrypt hash stored for a validator
// device's provisioning key.
func HashProvisioningKey(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyProvisioningKey safely compares a stored hash and a presented
// key.
func VerifyProvisioningKey(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
