// Package password hashes and verifies account passwords with bcrypt.
package password

import "golang.org/x/crypto/bcrypt"

// Cost is the bcrypt work factor applied to every new hash.
const Cost = 10

// Hash returns a salted bcrypt digest of the plaintext. The salt is
// generated per call, so hashing the same plaintext twice yields
// different digests.
func Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), Cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the stored digest. A malformed
// digest is treated as a mismatch, never an error.
func Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
