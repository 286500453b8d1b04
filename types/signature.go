package types

const (
	SignatureKindPhysical = "physical"
	SignatureKindDigital  = "digital"
)

// SignaturePosition is the page rectangle a signature is stamped into.
// Coordinates are in PDF points from the lower left corner.
type SignaturePosition struct {
	X      int `json:"x" validate:"gte=0"`
	Y      int `json:"y" validate:"gte=0"`
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
	Page   int `json:"page" validate:"gte=1"`
}

// Signature is the immutable record of one completed signing act. It is
// never updated or deleted after creation.
type Signature struct {
	BaseDocument `json:",inline"`
	ItemID       string            `json:"itemId" validate:"required"`
	UserID       string            `json:"userId" validate:"required"`
	Kind         string            `json:"kind" validate:"required,oneof=physical digital"`
	Position     SignaturePosition `json:"position"`
	// base64 PNG of the visual signature
	ImageBase64 string `json:"image,omitempty"`
	// sha256 hex of the item source at signing time
	ContentHash string `json:"contentHash"`
	// raw signature bytes, base64 (digital only)
	SignatureBase64 string `json:"signature,omitempty"`
	// fingerprint of the public key that produced the signature, so key
	// rotation never breaks verification of old signatures
	KeyFingerprint string `json:"keyFingerprint,omitempty"`
	Created        int64  `json:"created"`
}
