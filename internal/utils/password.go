package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLen     = sha256.Size
	saltBytes        = 16
)

// HashDealPassword — PBKDF2-SHA256, формат "hex(hash):salt".
// Salt хранится в hex и участвует в ключе как строка.
func HashDealPassword(password string) (string, error) {
	salt, err := RandomHex(saltBytes)
	if err != nil {
		return "", err
	}
	return hashWithSalt(password, salt), nil
}

func hashWithSalt(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key) + ":" + salt
}

// CheckDealPassword compares in constant time. A malformed stored hash never matches.
func CheckDealPassword(password, stored string) bool {
	hash, salt, ok := strings.Cut(stored, ":")
	if !ok || hash == "" || salt == "" {
		return false
	}
	want := hashWithSalt(password, salt)
	return subtle.ConstantTimeCompare([]byte(want), []byte(hash+":"+salt)) == 1
}
