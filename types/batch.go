package types

// RecipientRow is one parsed row of the recipient table. It is ephemeral
// input and never persisted on its own.
type RecipientRow struct {
	Serial string `json:"serial" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Name   string `json:"name,omitempty"`
}

// IssuanceBatch is the persisted batch record created when bulk issuance is
// submitted. Live counters are kept in redis while rows complete.
type IssuanceBatch struct {
	BaseDocument `json:",inline"`
	TemplateID   string `json:"templateId" validate:"required"`
	Total        int    `json:"total"`
	Cancelled    bool   `json:"cancelled"`
	Created      int64  `json:"created"`
}

// BatchStatus is the pollable handle of a running or finished batch.
type BatchStatus struct {
	BatchID   string `json:"batchId"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Cancelled bool   `json:"cancelled"`
	// certificates issued so far, in serial order
	Certificates []*Certificate `json:"certificates,omitempty"`
	// true once every row is accounted for
	Done bool `json:"done"`
}
