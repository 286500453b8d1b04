package api

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigilo/go-sigilo-server/queue"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/testutil"
	"github.com/sigilo/go-sigilo-server/types"
)

// apiFixture wires the REST handlers against the in-memory doubles
type apiFixture struct {
	router    *gin.Engine
	docs      *services.DocumentService
	certs     *services.CertificateService
	batches   *services.BatchService
	keystore  *services.KeystoreService
	artifacts *testutil.MemArtifacts
	enqueuer  *testutil.FakeEnqueuer
}

func newApiFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	selector := testutil.NewMemSelector()
	env := types.NewEnvironment(testutil.NewFakeRedis())
	enqueuer := testutil.NewFakeEnqueuer()
	env.TaskClient = enqueuer
	artifacts := testutil.NewMemArtifacts()
	engine := render.NewEngine(testutil.NewStubRenderer())

	docs := services.NewDocumentService(selector)
	certs := services.NewCertificateService(selector)
	batches := services.NewBatchService(selector, env)
	keystore := services.NewKeystoreService(selector)
	taskQueue := queue.NewTaskQueue(selector, env, artifacts, engine)

	certApi := NewCertificateApi(docs, certs, batches, keystore, taskQueue, env)
	verifyApi := NewVerificationApi(docs, certs, artifacts)

	router := gin.New()
	router.POST("/api/v1/templates/:id/issue", certApi.IssueBulk)
	router.GET("/api/v1/batches/:id", certApi.GetBatch)
	router.GET("/verify/:id", verifyApi.Verify)

	return &apiFixture{
		router:    router,
		docs:      docs,
		certs:     certs,
		batches:   batches,
		keystore:  keystore,
		artifacts: artifacts,
		enqueuer:  enqueuer,
	}
}

// signedTemplate creates a template whose single signer has signed and whose
// artifact is rendered
func (f *apiFixture) signedTemplate(t *testing.T, owner string) *types.SignableItem {
	t.Helper()
	item, err := f.docs.CreateItem(&types.SignableItem{
		Kind:      types.ItemKindTemplate,
		OwnerID:   owner,
		Title:     "attendance",
		SourceKey: "items/tmpl/source.pdf",
	}, []types.InputSignerRef{{UserID: owner, Order: 0}})
	if err != nil {
		t.Fatal(err)
	}
	signer, gErr := f.docs.GetSigner(item.ID, owner)
	if gErr != nil {
		t.Fatal(gErr)
	}
	signer.Signed = true
	signer.SignedAt = time.Now().UTC().UnixMilli()
	if uErr := f.docs.UpdateSigner(signer); uErr != nil {
		t.Fatal(uErr)
	}

	artifactKey := "items/tmpl/signed.pdf"
	if _, uErr := f.artifacts.Upload(context.Background(), artifactKey, []byte("%PDF signed"), "application/pdf"); uErr != nil {
		t.Fatal(uErr)
	}
	if sErr := f.docs.SetArtifactKey(item.ID, artifactKey); sErr != nil {
		t.Fatal(sErr)
	}

	template, tErr := f.docs.GetItem(item.ID)
	if tErr != nil {
		t.Fatal(tErr)
	}
	return template
}
