package services

import (
	"context"
	"time"

	"github.com/go-kit/log/level"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
)

// DeliveryService tracks the email delivery lifecycle of a certificate.
// Every attempt first moves the record to pending and bumps the attempt
// counter, so the counter is monotonic even across worker crashes.
type DeliveryService struct {
	certService *CertificateService
}

func NewDeliveryService(dbSelector repository.DBSelector) *DeliveryService {
	return &DeliveryService{certService: NewCertificateService(dbSelector)}
}

// MarkPending records the start of a delivery attempt
func (ds *DeliveryService) MarkPending(cert *types.Certificate) error {
	cert.DeliveryStatus = types.DeliveryStatusPending
	cert.DeliveryAttempts++
	cert.DeliveryError = ""
	return ds.certService.UpdateCertificate(cert)
}

// MarkSent records a successful delivery
func (ds *DeliveryService) MarkSent(cert *types.Certificate) error {
	cert.DeliveryStatus = types.DeliveryStatusSent
	cert.DeliveredAt = time.Now().UTC().UnixMilli()
	cert.DeliveryError = ""
	return ds.certService.UpdateCertificate(cert)
}

// MarkFailed records a failed attempt with a short reason
func (ds *DeliveryService) MarkFailed(cert *types.Certificate, reason string) error {
	cert.DeliveryStatus = types.DeliveryStatusFailed
	if len(reason) > 256 {
		reason = reason[:256]
	}
	cert.DeliveryError = reason
	return ds.certService.UpdateCertificate(cert)
}

// ListRetryable returns failed deliveries that still have retry budget left
func (ds *DeliveryService) ListRetryable(maxAttempts int) ([]*types.Certificate, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"deliveryStatus": types.DeliveryStatusFailed,
			"deliveryAttempts": map[string]interface{}{
				"$lt": maxAttempts,
			},
		},
		"limit":     1000,
		"use_index": "delivery-status-index",
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	resp, err := ds.certService.certRepo.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	var found types.FindResponse[*types.Certificate]
	if mErr := repository.MapFindResponse(resp, &found); mErr != nil {
		return nil, mErr
	}
	return found.Docs, nil
}

// ExhaustedRetries reports whether the certificate has used up the
// configured delivery attempts
func (ds *DeliveryService) ExhaustedRetries(cert *types.Certificate) bool {
	maxAttempts := global.Conf.Delivery.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	exhausted := cert.DeliveryAttempts >= maxAttempts
	if exhausted {
		level.Info(global.Logger).Log("msg", "delivery retries exhausted", "certificate", cert.ID, "attempts", cert.DeliveryAttempts)
	}
	return exhausted
}
