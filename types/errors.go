package types

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the resource conflicts (e.g. update of old revision)
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned on malformed input
	ErrBadRequest = errors.New("bad request")

	// ErrNoKey is returned when a user has no stored key pair
	ErrNoKey = errors.New("no key pair for user")

	// ErrInvalidCredentials is returned when the supplied secret does not unlock the stored private key
	ErrInvalidCredentials = errors.New("secret does not unlock private key")

	// ErrKeyGeneration is returned when the cryptographic primitive cannot produce a key
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrNotASigner is returned when the acting user was never designated as a signer
	ErrNotASigner = errors.New("user is not a designated signer")

	// ErrAlreadySigned is returned on a repeated signing attempt by the same signer
	ErrAlreadySigned = errors.New("signer already signed")

	// ErrSigningOrder is returned when sequential order is enforced and earlier signers are still pending
	ErrSigningOrder = errors.New("earlier signers still pending")

	// ErrItemDeleted is returned when signing a soft-deleted item
	ErrItemDeleted = errors.New("item deleted")

	// ErrTemplateNotReady is returned when bulk issuance starts from an incomplete template
	ErrTemplateNotReady = errors.New("template signing not completed")

	// ErrMissingRecipient is returned when a certificate has no recipient email
	ErrMissingRecipient = errors.New("certificate has no recipient email")

	// ErrRenderFailed is returned when the source is not a parseable document
	ErrRenderFailed = errors.New("document rendering failed")

	// ErrPositionOutOfBounds is returned when a signature rectangle falls outside the page
	ErrPositionOutOfBounds = errors.New("signature position out of page bounds")

	// ErrInvalidPublicKey is returned when the public key is malformed
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when the private key is malformed
	ErrInvalidPrivateKey = errors.New("invalid private key")
)
