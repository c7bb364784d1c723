package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	DealCodeLength = 8
	dealCodeAlpha  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewDealCode returns DealCodeLength characters from [A-Z0-9].
func NewDealCode() (string, error) {
	max := big.NewInt(int64(len(dealCodeAlpha)))
	b := make([]byte, DealCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = dealCodeAlpha[n.Int64()]
	}
	return string(b), nil
}

// IsDealCode reports whether s looks like a deal code.
func IsDealCode(s string) bool {
	if len(s) != DealCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
