package helper

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash for a plain-text password. Used by the
// hash-admin-password utility and tests; the server itself only verifies.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports nil when the plain password matches the bcrypt hash.
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
