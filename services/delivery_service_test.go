package services

import (
	"testing"

	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/tj/assert"
)

func newTestCertificate(t *testing.T, cs *CertificateService, serial string) *types.Certificate {
	t.Helper()
	cert, err := cs.CreateCertificate(&types.Certificate{
		TemplateID:     "tpl1",
		BatchID:        "batch1",
		Serial:         serial,
		RecipientEmail: "jane@example.com",
		RecipientName:  "Jane Doe",
		ArtifactKey:    "certificates/tpl1/" + serial + ".pdf",
	})
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func TestDuplicateSerialRejected(t *testing.T) {
	cs := NewCertificateService(newMemSelector())
	newTestCertificate(t, cs, "S-001")
	_, err := cs.CreateCertificate(&types.Certificate{
		TemplateID: "tpl1",
		BatchID:    "batch2",
		Serial:     "S-001",
	})
	assert.Equal(t, types.ErrConflict, err)
}

func TestDeliveryLifecycle(t *testing.T) {
	selector := newMemSelector()
	cs := NewCertificateService(selector)
	ds := NewDeliveryService(selector)
	cert := newTestCertificate(t, cs, "S-001")

	// never attempted
	assert.Equal(t, "", cert.DeliveryStatus)
	assert.Equal(t, 0, cert.DeliveryAttempts)

	if err := ds.MarkPending(cert); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.DeliveryStatusPending, cert.DeliveryStatus)
	assert.Equal(t, 1, cert.DeliveryAttempts)

	if err := ds.MarkSent(cert); err != nil {
		t.Fatal(err)
	}
	stored, gErr := cs.GetCertificate(cert.ID)
	if gErr != nil {
		t.Fatal(gErr)
	}
	assert.Equal(t, types.DeliveryStatusSent, stored.DeliveryStatus)
	assert.NotZero(t, stored.DeliveredAt)
	assert.Empty(t, stored.DeliveryError)
}

func TestDeliveryAttemptsMonotonic(t *testing.T) {
	selector := newMemSelector()
	cs := NewCertificateService(selector)
	ds := NewDeliveryService(selector)
	cert := newTestCertificate(t, cs, "S-001")

	for attempt := 1; attempt <= 3; attempt++ {
		if err := ds.MarkPending(cert); err != nil {
			t.Fatal(err)
		}
		if err := ds.MarkFailed(cert, "mailbox full"); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, attempt, cert.DeliveryAttempts)
	}

	stored, err := cs.GetCertificate(cert.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.DeliveryStatusFailed, stored.DeliveryStatus)
	assert.Equal(t, 3, stored.DeliveryAttempts)
	assert.Equal(t, "mailbox full", stored.DeliveryError)
}

func TestListRetryable(t *testing.T) {
	selector := newMemSelector()
	cs := NewCertificateService(selector)
	ds := NewDeliveryService(selector)

	exhausted := newTestCertificate(t, cs, "S-001")
	retryable := newTestCertificate(t, cs, "S-002")
	sent := newTestCertificate(t, cs, "S-003")

	for i := 0; i < 3; i++ {
		if err := ds.MarkPending(exhausted); err != nil {
			t.Fatal(err)
		}
		if err := ds.MarkFailed(exhausted, "bounced"); err != nil {
			t.Fatal(err)
		}
	}
	if err := ds.MarkPending(retryable); err != nil {
		t.Fatal(err)
	}
	if err := ds.MarkFailed(retryable, "timeout"); err != nil {
		t.Fatal(err)
	}
	if err := ds.MarkPending(sent); err != nil {
		t.Fatal(err)
	}
	if err := ds.MarkSent(sent); err != nil {
		t.Fatal(err)
	}

	certs, err := ds.ListRetryable(3)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, certs, 1)
	assert.Equal(t, retryable.ID, certs[0].ID)
}

func TestExhaustedRetries(t *testing.T) {
	global.Conf.Delivery.MaxAttempts = 3
	defer func() { global.Conf.Delivery.MaxAttempts = 0 }()

	ds := NewDeliveryService(newMemSelector())
	cert := &types.Certificate{DeliveryAttempts: 2}
	assert.False(t, ds.ExhaustedRetries(cert))
	cert.DeliveryAttempts = 3
	assert.True(t, ds.ExhaustedRetries(cert))
}
