package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/sigilo/go-sigilo-server/email"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/metrics"
	"github.com/sigilo/go-sigilo-server/types"
)

// DispatchCertificate emails the certificate artifact to the recipient. The
// record moves to pending with a bumped attempt counter before the provider
// is contacted, then to sent or failed depending on the outcome. A missing
// recipient address fails fast without ever entering pending.
func (tq *TaskQueue) DispatchCertificate(ctx context.Context, task *types.DispatchTask) error {
	cert, err := tq.certService.GetCertificate(task.CertificateID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("certificate %s not found: %w", task.CertificateID, asynq.SkipRetry)
		}
		return err
	}

	if cert.DeliveryStatus == types.DeliveryStatusSent {
		// already delivered, nothing to redo
		return nil
	}
	if cert.RecipientEmail == "" {
		level.Error(global.Logger).Log("msg", "certificate has no recipient address", "certificate", cert.ID)
		return fmt.Errorf("%v: %w", types.ErrMissingRecipient, asynq.SkipRetry)
	}

	handler := email.GetHandler(global.Conf.Mail.Provider)
	if handler == nil {
		return fmt.Errorf("no email handler registered for provider %s: %w", global.Conf.Mail.Provider, asynq.SkipRetry)
	}

	if pErr := tq.deliveryService.MarkPending(cert); pErr != nil {
		return pErr
	}

	artifact, aErr := tq.artifacts.Download(ctx, cert.ArtifactKey)
	if aErr != nil {
		return tq.deliveryFailed(cert, aErr)
	}

	subject := global.Conf.Mail.Subject
	if subject == "" {
		subject = "Your certificate"
	}
	body := fmt.Sprintf("Hello %s,\n\nplease find your certificate (serial %s) attached.\n", cert.RecipientName, cert.Serial)
	attachment := &email.Attachment{
		Filename: fmt.Sprintf("certificate_%s.pdf", cert.Serial),
		Content:  artifact,
	}

	sendCtx, cancel := context.WithTimeout(ctx, time.Duration(global.Conf.Delivery.TimeoutSeconds)*time.Second)
	defer cancel()
	messageID, sErr := handler.Send(sendCtx, cert.RecipientEmail, subject, body, attachment)
	if sErr != nil {
		return tq.deliveryFailed(cert, sErr)
	}

	if mErr := tq.deliveryService.MarkSent(cert); mErr != nil {
		return mErr
	}
	metrics.EmailsSent.Inc()
	level.Info(global.Logger).Log("msg", "certificate delivered", "certificate", cert.ID, "messageId", messageID)
	return nil
}

func (tq *TaskQueue) deliveryFailed(cert *types.Certificate, cause error) error {
	metrics.EmailsFailed.Inc()
	if mErr := tq.deliveryService.MarkFailed(cert, cause.Error()); mErr != nil {
		level.Error(global.Logger).Log("msg", "failed to record delivery failure", "certificate", cert.ID, "err", mErr)
	}
	if tq.deliveryService.ExhaustedRetries(cert) {
		return fmt.Errorf("delivery of %s failed: %v: %w", cert.ID, cause, asynq.SkipRetry)
	}
	return fmt.Errorf("delivery of %s failed: %w", cert.ID, cause)
}
