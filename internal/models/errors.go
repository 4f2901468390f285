package models

import "errors"

var (
	ErrSecretNotFound    = errors.New("secret not found")
	ErrInvalidCiphertext = errors.New("decryption failed")
	ErrSignatureInvalid  = errors.New("webhook signature verification failed")
	ErrSignatureMissing  = errors.New("webhook signature header missing")
	ErrStaleTimestamp    = errors.New("webhook timestamp outside tolerance")
	ErrUnknownProvider   = errors.New("unknown webhook provider")
)
