package types

// InputGenerateKeys sets or replaces the signing secret of a user
type InputGenerateKeys struct {
	UserID string `json:"userId" validate:"required"`
	Secret string `json:"secret"`
}

type InputSignerRef struct {
	UserID string `json:"userId" validate:"required"`
	Order  int    `json:"order" validate:"gte=0"`
}

// InputCreateItem registers a document or template and its required signers
type InputCreateItem struct {
	Kind        string           `json:"kind" validate:"required,oneof=document template"`
	OwnerID     string           `json:"ownerId" validate:"required"`
	Title       string           `json:"title"`
	FileBase64  string           `json:"file" validate:"required"`
	Signers     []InputSignerRef `json:"signers" validate:"required,min=1,dive"`
}

// InputSign is one signing act by a designated signer
type InputSign struct {
	UserID      string            `json:"userId" validate:"required"`
	Secret      string            `json:"secret"`
	Kind        string            `json:"kind" validate:"required,oneof=physical digital"`
	ImageBase64 string            `json:"image"`
	Position    SignaturePosition `json:"position"`
}
