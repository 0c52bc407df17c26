package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a plain text password for storage on the user row.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ComparePassword checks a plain text password against its stored hash.
func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
