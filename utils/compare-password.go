package utils

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrInvalidHash       = errors.New("invalid password hash format")
)

func ComparePass(password, hashPassword string) error {
	saltBase64, hashBase64, ok := strings.Cut(hashPassword, ".")
	if !ok || strings.Contains(hashBase64, ".") {
		return ErrInvalidHash
	}

	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return ErrInvalidHash
	}
	hash, err := base64.StdEncoding.DecodeString(hashBase64)
	if err != nil {
		return ErrInvalidHash
	}

	candidate := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	if len(hash) != len(candidate) {
		return ErrIncorrectPassword
	}
	if subtle.ConstantTimeCompare(hash, candidate) != 1 {
		return ErrIncorrectPassword
	}
	return nil
}
