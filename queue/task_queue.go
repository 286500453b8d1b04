package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
)

// TaskQueue processes background tasks for certificate issuance and
// delivery
type TaskQueue struct {
	docService      *services.DocumentService
	certService     *services.CertificateService
	batchService    *services.BatchService
	deliveryService *services.DeliveryService
	artifacts       services.ArtifactStore
	engine          *render.Engine
	env             *types.Environment
	validate        *validator.Validate
}

func NewTaskQueue(dbSelector repository.DBSelector, env *types.Environment, artifacts services.ArtifactStore, engine *render.Engine) *TaskQueue {
	return &TaskQueue{
		docService:      services.NewDocumentService(dbSelector),
		certService:     services.NewCertificateService(dbSelector),
		batchService:    services.NewBatchService(dbSelector, env),
		deliveryService: services.NewDeliveryService(dbSelector),
		artifacts:       artifacts,
		engine:          engine,
		env:             env,
		validate:        validator.New(),
	}
}

// ProcessIssuanceTask handles a single recipient row of an issuance batch
func (tq *TaskQueue) ProcessIssuanceTask(ctx context.Context, t *asynq.Task) error {
	var task types.IssuanceTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal issuance task: %v: %w", err, asynq.SkipRetry)
	}
	return tq.IssueCertificate(ctx, &task)
}

// ProcessDispatchTask handles the email delivery of an issued certificate
func (tq *TaskQueue) ProcessDispatchTask(ctx context.Context, t *asynq.Task) error {
	var task types.DispatchTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal dispatch task: %v: %w", err, asynq.SkipRetry)
	}
	return tq.DispatchCertificate(ctx, &task)
}

// finalAttempt reports whether the current run is the last one asynq will
// make for this task
func finalAttempt(ctx context.Context) bool {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}
