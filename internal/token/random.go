package token

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const (
	numericPool  = "0123456789"
	lowerPool    = "abcdefghijklmnopqrstuvwxyz"
	upperPool    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	specialPool  = "!@#$%^&*()_+{}:<>?[];,./~"
	passwordPool = numericPool + lowerPool + upperPool + specialPool
	suffixPool   = numericPool + lowerPool
	suffixLength = 5
)

// RandomPassword returns an unguessable password of the given length drawn
// from the full character pool. Used for accounts created through external
// identity, which can never authenticate with it.
func RandomPassword(length int) (string, error) {
	if length <= 0 {
		length = 16
	}
	return randomFromPool(passwordPool, length)
}

// UsernameSuffix returns a short lowercase disambiguator appended to
// usernames derived from external-identity display names.
func UsernameSuffix() (string, error) {
	return randomFromPool(suffixPool, suffixLength)
}

func randomFromPool(pool string, length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(pool)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = pool[n.Int64()]
	}
	return string(out), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
