package polymorph

import "errors"

var (
	// ErrInvalidInput indicates a malformed identifier or request. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingExhausted indicates that no curve point was found within the attempt budget.
	ErrEmbeddingExhausted = errors.New("embedding attempts exhausted")

	// ErrPolicyDenied is returned for every authorization failure. It carries no reason.
	ErrPolicyDenied = errors.New("not authorized")

	// ErrCryptoIntegrity indicates a failed round trip check or malformed ciphertext.
	ErrCryptoIntegrity = errors.New("cryptographic integrity failure")
)
