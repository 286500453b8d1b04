package types

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

var (
	QueueTypeCertificateIssue    = "certificate:issue"
	QueueTypeCertificateDispatch = "certificate:dispatch"
)

// IssuanceTask carries one recipient row of a bulk issuance batch
type IssuanceTask struct {
	BatchID    string       `json:"batchId" validate:"required"`
	TemplateID string       `json:"templateId" validate:"required"`
	Row        RecipientRow `json:"row"`
	// 1-based row index in the uploaded table, for operator-legible errors
	RowIndex int `json:"rowIndex"`
}

// DispatchTask carries the certificate to email out
type DispatchTask struct {
	CertificateID string `json:"certificateId" validate:"required"`
}

func NewIssuanceTask(task *IssuanceTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeCertificateIssue, payload), nil
}

func NewDispatchTask(task *DispatchTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeCertificateDispatch, payload), nil
}
