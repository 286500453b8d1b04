package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/metrics"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/sigilo/go-sigilo-server/util"
)

// IssueCertificate processes one recipient row. Each row is isolated: a
// failure here only marks this row failed, the rest of the batch is
// untouched. A cancelled batch skips rows that have not started.
func (tq *TaskQueue) IssueCertificate(ctx context.Context, task *types.IssuanceTask) error {
	if tq.batchService.IsCancelled(ctx, task.BatchID) {
		tq.batchService.IncrSkipped(ctx, task.BatchID)
		level.Info(global.Logger).Log("msg", "batch cancelled, skipping row", "batch", task.BatchID, "row", task.RowIndex)
		return nil
	}

	if err := tq.validate.Struct(task.Row); err != nil {
		tq.batchService.IncrFailed(ctx, task.BatchID)
		metrics.CertificatesFailed.Inc()
		return fmt.Errorf("row %d invalid: %v: %w", task.RowIndex, err, asynq.SkipRetry)
	}

	template, err := tq.docService.GetItem(task.TemplateID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			tq.batchService.IncrFailed(ctx, task.BatchID)
			metrics.CertificatesFailed.Inc()
			return fmt.Errorf("template %s not found: %w", task.TemplateID, asynq.SkipRetry)
		}
		return tq.retryable(ctx, task, err)
	}
	if template.ArtifactKey == "" {
		tq.batchService.IncrFailed(ctx, task.BatchID)
		metrics.CertificatesFailed.Inc()
		return fmt.Errorf("template %s: %v: %w", task.TemplateID, types.ErrTemplateNotReady, asynq.SkipRetry)
	}

	templateArtifact, err := tq.artifacts.Download(ctx, template.ArtifactKey)
	if err != nil {
		return tq.retryable(ctx, task, err)
	}

	start := time.Now()
	personalized, err := tq.engine.PersonalizeCertificate(templateArtifact, task.Row.Name, task.Row.Serial)
	if err != nil {
		tq.batchService.IncrFailed(ctx, task.BatchID)
		metrics.CertificatesFailed.Inc()
		return fmt.Errorf("row %d render failed: %v: %w", task.RowIndex, err, asynq.SkipRetry)
	}
	metrics.RenderDuration.Observe(time.Since(start).Seconds())

	artifactKey := fmt.Sprintf("certificates/%s/%s_%s.pdf", task.TemplateID, task.Row.Serial, util.ArtifactKey(personalized))
	if _, uErr := tq.artifacts.Upload(ctx, artifactKey, personalized, "application/pdf"); uErr != nil {
		return tq.retryable(ctx, task, uErr)
	}

	cert := &types.Certificate{
		TemplateID:     task.TemplateID,
		BatchID:        task.BatchID,
		Serial:         task.Row.Serial,
		RecipientEmail: task.Row.Email,
		RecipientName:  task.Row.Name,
		ArtifactKey:    artifactKey,
	}
	created, cErr := tq.certService.CreateCertificate(cert)
	if cErr != nil {
		if errors.Is(cErr, types.ErrConflict) {
			tq.batchService.IncrFailed(ctx, task.BatchID)
			metrics.CertificatesFailed.Inc()
			return fmt.Errorf("serial %s already issued for template %s: %w", task.Row.Serial, task.TemplateID, asynq.SkipRetry)
		}
		return tq.retryable(ctx, task, cErr)
	}

	tq.batchService.IncrSucceeded(ctx, task.BatchID)
	metrics.CertificatesIssued.Inc()

	if eErr := tq.EnqueueDispatch(ctx, created.ID); eErr != nil {
		level.Error(global.Logger).Log("msg", "failed to enqueue dispatch", "certificate", created.ID, "err", eErr)
	}
	return nil
}

// EnqueueIssuance schedules one recipient row of a batch. The task ID is
// derived from the serial, so a duplicate serial in the same batch comes back
// as ErrConflict and the caller decides how to count it.
func (tq *TaskQueue) EnqueueIssuance(ctx context.Context, batchID, templateID string, row types.RecipientRow, rowIndex int) error {
	task, err := types.NewIssuanceTask(&types.IssuanceTask{
		BatchID:    batchID,
		TemplateID: templateID,
		Row:        row,
		RowIndex:   rowIndex,
	})
	if err != nil {
		return err
	}
	_, eErr := tq.env.TaskClient.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("issue:%s:%s", batchID, row.Serial)),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Second*60))
	if eErr != nil {
		if errors.Is(eErr, asynq.ErrTaskIDConflict) {
			return types.ErrConflict
		}
		return eErr
	}
	return nil
}

// EnqueueDispatch schedules the delivery email for a certificate. The task
// ID pins delivery to a single owner, re-enqueueing a certificate already in
// flight is a no-op.
func (tq *TaskQueue) EnqueueDispatch(ctx context.Context, certID string) error {
	task, err := types.NewDispatchTask(&types.DispatchTask{CertificateID: certID})
	if err != nil {
		return err
	}
	timeout := time.Duration(global.Conf.Delivery.TimeoutSeconds) * time.Second
	_, eErr := tq.env.TaskClient.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("dispatch:%s", certID)),
		asynq.MaxRetry(global.Conf.Delivery.MaxAttempts),
		asynq.Timeout(timeout))
	if eErr != nil {
		if errors.Is(eErr, asynq.ErrTaskIDConflict) {
			return nil
		}
		return eErr
	}
	return nil
}

// retryable returns the error for asynq to retry, counting the row as
// failed only once the retry budget is spent
func (tq *TaskQueue) retryable(ctx context.Context, task *types.IssuanceTask, err error) error {
	if finalAttempt(ctx) {
		tq.batchService.IncrFailed(ctx, task.BatchID)
		metrics.CertificatesFailed.Inc()
	}
	return fmt.Errorf("row %d: %w", task.RowIndex, err)
}
