package types

const (
	ItemKindDocument = "document"
	ItemKindTemplate = "template"
)

// SignableItem is a document or certificate template going through the
// multi-signer workflow. Completion is derived from the Signer rows and never
// stored on the item itself.
type SignableItem struct {
	BaseDocument `json:",inline"`
	Kind         string `json:"kind" validate:"required,oneof=document template"`
	OwnerID      string `json:"ownerId" validate:"required"`
	Title        string `json:"title"`
	// object key of the original unsigned source file
	SourceKey   string `json:"sourceKey" validate:"required"`
	ContentHash string `json:"contentHash"`
	// object key of the fully rendered signed artifact, set once completed
	ArtifactKey string `json:"artifactKey,omitempty"`
	Deleted     bool   `json:"deleted"`
	Created     int64  `json:"created"`
	Modified    int64  `json:"modified,omitempty"`
}

// Signer is the join row between a SignableItem and a designated user.
// Rows are created with the item and never deleted; Signed flips false to
// true exactly once.
type Signer struct {
	BaseDocument `json:",inline"`
	ItemID       string `json:"itemId" validate:"required"`
	UserID       string `json:"userId" validate:"required"`
	Order        int    `json:"order"`
	Signed       bool   `json:"signed"`
	Created      int64  `json:"created"`
	SignedAt     int64  `json:"signedAt,omitempty"`
}

// SignerDocID builds the deterministic document id of a signer row. The
// (item, user) pair is unique by construction.
func SignerDocID(itemID, userID string) string {
	return itemID + ":" + userID
}
