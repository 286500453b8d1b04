package types

const (
	// delivery status lifecycle; empty string means dispatch was never attempted
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// Certificate is one issued (template, recipient) pair produced by bulk
// issuance. Only the delivery tracker mutates it after creation.
type Certificate struct {
	BaseDocument   `json:",inline"`
	TemplateID     string `json:"templateId" validate:"required"`
	BatchID        string `json:"batchId"`
	Serial         string `json:"serial" validate:"required"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName,omitempty"`
	ArtifactKey    string `json:"artifactKey"`
	IssuedAt       int64  `json:"issuedAt"`

	DeliveryStatus   string `json:"deliveryStatus,omitempty"`
	DeliveryAttempts int    `json:"deliveryAttempts"`
	DeliveredAt      int64  `json:"deliveredAt,omitempty"`
	// last human-readable delivery error, kept short for operator visibility
	DeliveryError string `json:"deliveryError,omitempty"`
}

// CertificateDocID builds the deterministic id enforcing the unique
// (template, serial) constraint.
func CertificateDocID(templateID, serial string) string {
	return templateID + ":" + serial
}
