package services

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/sigilo/go-sigilo-server/util"
	"github.com/tj/assert"
)

type workflowFixture struct {
	signing   *SigningService
	docs      *DocumentService
	keystore  *KeystoreService
	artifacts *memArtifacts
	item      *types.SignableItem
}

func validPosition() types.SignaturePosition {
	return types.SignaturePosition{X: 50, Y: 50, Width: 150, Height: 40, Page: 1}
}

// newWorkflowFixture creates an item with signers alice (order 0) and bob
// (order 1), both with registered keys
func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	selector := newMemSelector()
	artifacts := newMemArtifacts()
	engine := render.NewEngine(newStubRenderer())

	f := &workflowFixture{
		signing:   NewSigningService(selector, artifacts, engine),
		docs:      NewDocumentService(selector),
		keystore:  NewKeystoreService(selector),
		artifacts: artifacts,
	}

	for _, user := range []string{"alice", "bob"} {
		if _, err := f.keystore.GenerateKeyPair(user, "secret-"+user); err != nil {
			t.Fatal(err)
		}
	}

	content := []byte("%PDF-1.4 test document")
	item := &types.SignableItem{
		Kind:        types.ItemKindDocument,
		OwnerID:     "alice",
		Title:       "employment contract",
		SourceKey:   "items/test/source.pdf",
		ContentHash: util.Sha256Hex(content),
	}
	created, err := f.docs.CreateItem(item, []types.InputSignerRef{
		{UserID: "alice", Order: 0},
		{UserID: "bob", Order: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := artifacts.Upload(context.Background(), created.SourceKey, content, "application/pdf"); err != nil {
		t.Fatal(err)
	}
	f.item = created
	return f
}

func (f *workflowFixture) sign(t *testing.T, user, secret string) (*types.OutputSignResult, error) {
	t.Helper()
	return f.signing.Sign(f.item.ID, &types.InputSign{
		UserID:   user,
		Secret:   secret,
		Kind:     types.SignatureKindDigital,
		Position: validPosition(),
	})
}

func TestSignUntilCompleted(t *testing.T) {
	f := newWorkflowFixture(t)

	result, err := f.sign(t, "alice", "secret-alice")
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, result.Completed)
	assert.Empty(t, result.ArtifactKey)

	completed, err := f.docs.IsCompleted(f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, completed)

	result, err = f.sign(t, "bob", "secret-bob")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, result.Completed)
	assert.Empty(t, result.RenderWarning)
	assert.NotEmpty(t, result.ArtifactKey)

	// the rendered artifact exists and the item points at it
	artifact, dErr := f.artifacts.Download(context.Background(), result.ArtifactKey)
	if dErr != nil {
		t.Fatal(dErr)
	}
	assert.NotEmpty(t, artifact)
	item, gErr := f.docs.GetItem(f.item.ID)
	if gErr != nil {
		t.Fatal(gErr)
	}
	assert.Equal(t, result.ArtifactKey, item.ArtifactKey)

	completed, err = f.docs.IsCompleted(f.item.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, completed)
}

func TestSignNotASigner(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.sign(t, "mallory", "whatever")
	assert.Equal(t, types.ErrNotASigner, err)
}

func TestSignTwice(t *testing.T) {
	f := newWorkflowFixture(t)
	if _, err := f.sign(t, "alice", "secret-alice"); err != nil {
		t.Fatal(err)
	}
	_, err := f.sign(t, "alice", "secret-alice")
	assert.Equal(t, types.ErrAlreadySigned, err)

	// exactly one signature recorded
	signatures, sErr := f.docs.ListSignatures(f.item.ID)
	if sErr != nil {
		t.Fatal(sErr)
	}
	assert.Len(t, signatures, 1)
	assert.Equal(t, "alice", signatures[0].UserID)
}

func TestSignWrongSecretLeavesNoTrace(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.sign(t, "alice", "wrong")
	assert.Equal(t, types.ErrInvalidCredentials, err)

	signer, gErr := f.docs.GetSigner(f.item.ID, "alice")
	if gErr != nil {
		t.Fatal(gErr)
	}
	assert.False(t, signer.Signed)
	signatures, sErr := f.docs.ListSignatures(f.item.ID)
	if sErr != nil {
		t.Fatal(sErr)
	}
	assert.Len(t, signatures, 0)
}

func TestSignDeletedItem(t *testing.T) {
	f := newWorkflowFixture(t)
	if err := f.docs.SoftDelete(f.item.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.sign(t, "alice", "secret-alice")
	assert.Equal(t, types.ErrItemDeleted, err)
}

func TestSignOrderEnforced(t *testing.T) {
	global.Conf.Signing.EnforceOrder = true
	defer func() { global.Conf.Signing.EnforceOrder = false }()

	f := newWorkflowFixture(t)
	_, err := f.sign(t, "bob", "secret-bob")
	assert.Equal(t, types.ErrSigningOrder, err)

	if _, err := f.sign(t, "alice", "secret-alice"); err != nil {
		t.Fatal(err)
	}
	result, err := f.sign(t, "bob", "secret-bob")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, result.Completed)
}

func TestRenderFailureKeepsSignatures(t *testing.T) {
	f := newWorkflowFixture(t)
	if _, err := f.sign(t, "alice", "secret-alice"); err != nil {
		t.Fatal(err)
	}
	// drop the source so final rendering cannot succeed
	if err := f.artifacts.Delete(context.Background(), f.item.SourceKey); err != nil {
		t.Fatal(err)
	}

	result, err := f.sign(t, "bob", "secret-bob")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, result.Completed)
	assert.NotEmpty(t, result.RenderWarning)
	assert.Empty(t, result.ArtifactKey)

	// the signing state survived the render failure
	signatures, sErr := f.docs.ListSignatures(f.item.ID)
	if sErr != nil {
		t.Fatal(sErr)
	}
	assert.Len(t, signatures, 2)
	completed, cErr := f.docs.IsCompleted(f.item.ID)
	if cErr != nil {
		t.Fatal(cErr)
	}
	assert.True(t, completed)
}

func TestRenderArtifactIdempotent(t *testing.T) {
	f := newWorkflowFixture(t)
	if _, err := f.sign(t, "alice", "secret-alice"); err != nil {
		t.Fatal(err)
	}
	result, err := f.sign(t, "bob", "secret-bob")
	if err != nil {
		t.Fatal(err)
	}

	item, gErr := f.docs.GetItem(f.item.ID)
	if gErr != nil {
		t.Fatal(gErr)
	}
	again, rErr := f.signing.RenderArtifact(item)
	if rErr != nil {
		t.Fatal(rErr)
	}
	assert.Equal(t, result.ArtifactKey, again)
}

func TestSignatureBoundToContentAndPosition(t *testing.T) {
	f := newWorkflowFixture(t)
	if _, err := f.sign(t, "alice", "secret-alice"); err != nil {
		t.Fatal(err)
	}
	signatures, sErr := f.docs.ListSignatures(f.item.ID)
	if sErr != nil {
		t.Fatal(sErr)
	}
	sig := signatures[0]

	kp, kErr := f.keystore.GetKeyPair("alice")
	if kErr != nil {
		t.Fatal(kErr)
	}
	assert.Equal(t, kp.Fingerprint, sig.KeyFingerprint)

	digest := SigningDigest(sig.ContentHash, sig.UserID, sig.Position)
	raw := mustDecodeBase64(t, sig.SignatureBase64)
	verified, vErr := f.keystore.Verify([]byte(kp.PublicKeyPem), digest, raw)
	if vErr != nil {
		t.Fatal(vErr)
	}
	assert.True(t, verified)

	// a different position must produce a different digest
	other := validPosition()
	other.X += 10
	otherDigest := SigningDigest(sig.ContentHash, sig.UserID, other)
	verified, vErr = f.keystore.Verify([]byte(kp.PublicKeyPem), otherDigest, raw)
	if vErr != nil {
		t.Fatal(vErr)
	}
	assert.False(t, verified)
}

func mustDecodeBase64(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
