package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/sigilo/go-sigilo-server/email"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/testutil"
	"github.com/sigilo/go-sigilo-server/types"
)

var (
	registerMailOnce sync.Once
	memMail          = testutil.NewMemMail()
)

// queueFixture wires a TaskQueue against the in-memory doubles
type queueFixture struct {
	tq        *TaskQueue
	selector  *testutil.MemSelector
	artifacts *testutil.MemArtifacts
	enqueuer  *testutil.FakeEnqueuer
	mail      *testutil.MemMail
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()
	registerMailOnce.Do(func() {
		email.RegisterHandler("memmail", memMail)
	})
	memMail.Reset()

	prevMail := global.Conf.Mail
	prevDelivery := global.Conf.Delivery
	global.Conf.Mail.Provider = "memmail"
	global.Conf.Delivery = global.DeliveryConfig{MaxAttempts: 3, TimeoutSeconds: 60}
	t.Cleanup(func() {
		global.Conf.Mail = prevMail
		global.Conf.Delivery = prevDelivery
	})

	selector := testutil.NewMemSelector()
	env := types.NewEnvironment(testutil.NewFakeRedis())
	enqueuer := testutil.NewFakeEnqueuer()
	env.TaskClient = enqueuer
	artifacts := testutil.NewMemArtifacts()
	engine := render.NewEngine(testutil.NewStubRenderer())

	return &queueFixture{
		tq:        NewTaskQueue(selector, env, artifacts, engine),
		selector:  selector,
		artifacts: artifacts,
		enqueuer:  enqueuer,
		mail:      memMail,
	}
}

// readyTemplate creates a fully signed template with a rendered artifact, the
// state bulk issuance starts from
func (f *queueFixture) readyTemplate(t *testing.T) *types.SignableItem {
	t.Helper()
	item := &types.SignableItem{
		Kind:      types.ItemKindTemplate,
		OwnerID:   "alice",
		Title:     "attendance",
		SourceKey: "items/tmpl/source.pdf",
	}
	created, err := f.tq.docService.CreateItem(item, []types.InputSignerRef{{UserID: "alice", Order: 0}})
	if err != nil {
		t.Fatal(err)
	}
	signer, gErr := f.tq.docService.GetSigner(created.ID, "alice")
	if gErr != nil {
		t.Fatal(gErr)
	}
	signer.Signed = true
	if uErr := f.tq.docService.UpdateSigner(signer); uErr != nil {
		t.Fatal(uErr)
	}

	artifactKey := "items/tmpl/signed.pdf"
	if _, uErr := f.artifacts.Upload(context.Background(), artifactKey, []byte("%PDF template"), "application/pdf"); uErr != nil {
		t.Fatal(uErr)
	}
	if sErr := f.tq.docService.SetArtifactKey(created.ID, artifactKey); sErr != nil {
		t.Fatal(sErr)
	}

	template, tErr := f.tq.docService.GetItem(created.ID)
	if tErr != nil {
		t.Fatal(tErr)
	}
	return template
}

// issuedCertificate stores a certificate with its artifact, ready for
// dispatch
func (f *queueFixture) issuedCertificate(t *testing.T, templateID, serial, recipient string) *types.Certificate {
	t.Helper()
	artifactKey := "certificates/" + templateID + "/" + serial + ".pdf"
	if _, uErr := f.artifacts.Upload(context.Background(), artifactKey, []byte("%PDF cert"), "application/pdf"); uErr != nil {
		t.Fatal(uErr)
	}
	cert, err := f.tq.certService.CreateCertificate(&types.Certificate{
		TemplateID:     templateID,
		Serial:         serial,
		RecipientEmail: recipient,
		RecipientName:  "Bob",
		ArtifactKey:    artifactKey,
	})
	if err != nil {
		t.Fatal(err)
	}
	return cert
}
