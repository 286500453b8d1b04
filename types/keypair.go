package types

// KeyPair is a user's asymmetric signing key material. The private half is
// stored encrypted under a key derived from the user secret. An empty secret
// leaves the private key plaintext at rest and is flagged as a weak mode.
type KeyPair struct {
	BaseDocument `json:",inline"`
	UserID       string `json:"userId" validate:"required"`
	Algorithm    string `json:"algorithm"` // e.g. rsa-2048
	PublicKeyPem string `json:"publicKeyPem" validate:"required"`
	// base64 AES-256-GCM ciphertext of the PEM private key (or plain base64 PEM when not encrypted)
	PrivateKeyEnc string `json:"privateKeyEnc" validate:"required"`
	SaltBase64    string `json:"salt,omitempty"`
	NonceBase64   string `json:"nonce,omitempty"`
	Encrypted     bool   `json:"encrypted"`
	// sha256 hex of the DER public key; signatures are pinned to this value
	Fingerprint string `json:"fingerprint"`
	Created     int64  `json:"created"`
}
