package types

type OutputKeyPair struct {
	UserID       string `json:"userId"`
	Algorithm    string `json:"algorithm"`
	PublicKeyPem string `json:"publicKeyPem"`
	Fingerprint  string `json:"fingerprint"`
	Encrypted    bool   `json:"encrypted"`
	Created      int64  `json:"created"`
}

type OutputItem struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Title     string   `json:"title"`
	Completed bool     `json:"completed"`
	Signers   []Signer `json:"signers,omitempty"`
	Created   int64    `json:"created"`
}

type OutputSignResult struct {
	ItemID    string `json:"itemId"`
	Completed bool   `json:"completed"`
	// set when completion triggered final artifact rendering
	ArtifactKey string `json:"artifactKey,omitempty"`
	// non-fatal rendering error; signatures are committed and the artifact
	// can be regenerated later
	RenderWarning string `json:"renderWarning,omitempty"`
}

type OutputBatchSubmitted struct {
	BatchID string `json:"batchId"`
	Total   int    `json:"total"`
	// rows rejected during parsing, counted as failed before any task ran
	FailedValidation int `json:"failedValidation"`
}

// OutputVerification is the public verification endpoint contract
type OutputVerification struct {
	Status    string         `json:"status"` // verified | not-found
	Kind      string         `json:"kind,omitempty"`
	Completed bool           `json:"completed,omitempty"`
	IssuedAt  int64          `json:"issuedAt,omitempty"`
	Signers   []OutputSigner `json:"signers,omitempty"`
	// sha256 hex of the rendered artifact, enough for a third party to
	// confirm the file was not altered since signing
	VerificationHash string `json:"verificationHash,omitempty"`
}

type OutputSigner struct {
	UserID   string `json:"userId"`
	Order    int    `json:"order"`
	Signed   bool   `json:"signed"`
	SignedAt int64  `json:"signedAt,omitempty"`
}
