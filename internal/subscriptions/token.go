package subscriptions

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// TokenLength is the number of characters in a confirmation token.
const TokenLength = 25

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var alphabetSize = big.NewInt(int64(len(tokenAlphabet)))

// GenerateToken returns a random confirmation token drawn uniformly from
// [0-9a-zA-Z] using crypto/rand.
func GenerateToken() (string, error) {
	var token [TokenLength]byte
	for i := range token {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		token[i] = tokenAlphabet[n.Int64()]
	}
	return string(token[:]), nil
}

// IsWellFormedToken reports whether s could have been produced by
// GenerateToken.
func IsWellFormedToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}
