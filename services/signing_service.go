package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/sigilo/go-sigilo-server/util"
)

// SigningService runs the multi signer workflow. The signer row is the
// synchronization point: flipping it is a revision checked write, so two
// concurrent attempts by the same signer produce exactly one signature.
type SigningService struct {
	docService *DocumentService
	keystore   *KeystoreService
	artifacts  ArtifactStore
	engine     *render.Engine
}

func NewSigningService(dbSelector repository.DBSelector, artifacts ArtifactStore, engine *render.Engine) *SigningService {
	return &SigningService{
		docService: NewDocumentService(dbSelector),
		keystore:   NewKeystoreService(dbSelector),
		artifacts:  artifacts,
		engine:     engine,
	}
}

// Sign records the user's signature on the item and flips their signer row.
// Key custody failures happen before any state is written, so a wrong secret
// or missing key leaves the workflow untouched. When the last signer signs,
// the final artifact is rendered; a render failure is reported as a warning
// and never rolls back the signing state.
func (ss *SigningService) Sign(itemID string, input *types.InputSign) (*types.OutputSignResult, error) {
	item, err := ss.docService.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, types.ErrItemDeleted
	}

	signer, err := ss.docService.GetSigner(itemID, input.UserID)
	if err != nil {
		return nil, err
	}
	if signer.Signed {
		return nil, types.ErrAlreadySigned
	}

	if global.Conf.Signing.EnforceOrder {
		if oErr := ss.checkOrder(itemID, signer); oErr != nil {
			return nil, oErr
		}
	}

	digest := SigningDigest(item.ContentHash, input.UserID, input.Position)
	signatureBytes, fingerprint, err := ss.keystore.Sign(input.UserID, input.Secret, digest)
	if err != nil {
		return nil, err
	}

	// the flip is the mutex: a stale revision means someone else got there
	// first
	signer.Signed = true
	signer.SignedAt = time.Now().UTC().UnixMilli()
	if uErr := ss.docService.UpdateSigner(signer); uErr != nil {
		if errors.Is(uErr, types.ErrConflict) {
			return nil, types.ErrAlreadySigned
		}
		return nil, uErr
	}

	signature := &types.Signature{
		ItemID:          itemID,
		UserID:          input.UserID,
		Kind:            input.Kind,
		Position:        input.Position,
		ImageBase64:     input.ImageBase64,
		ContentHash:     item.ContentHash,
		SignatureBase64: base64.StdEncoding.EncodeToString(signatureBytes),
		KeyFingerprint:  fingerprint,
	}
	if _, cErr := ss.docService.CreateSignature(signature); cErr != nil {
		// undo the flip so the signer can retry
		signer.Signed = false
		signer.SignedAt = 0
		if rErr := ss.docService.UpdateSigner(signer); rErr != nil {
			level.Error(global.Logger).Log("msg", "failed to revert signer after signature create failure", "item", itemID, "user", input.UserID, "err", rErr)
		}
		return nil, cErr
	}

	result := &types.OutputSignResult{ItemID: itemID}

	completed, cErr := ss.docService.IsCompleted(itemID)
	if cErr != nil {
		result.RenderWarning = fmt.Sprintf("completion check failed: %s", cErr.Error())
		return result, nil
	}
	result.Completed = completed
	if !completed {
		return result, nil
	}

	artifactKey, rErr := ss.RenderArtifact(item)
	if rErr != nil {
		level.Error(global.Logger).Log("msg", "final artifact render failed", "item", itemID, "err", rErr)
		result.RenderWarning = rErr.Error()
		return result, nil
	}
	result.ArtifactKey = artifactKey
	return result, nil
}

// RenderArtifact re-renders the signed document from the stored source and
// all recorded signatures. The transform is pure, rendering twice from the
// same inputs yields the same artifact key.
func (ss *SigningService) RenderArtifact(item *types.SignableItem) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	source, err := ss.artifacts.Download(ctx, item.SourceKey)
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}
	signatures, err := ss.docService.ListSignatures(item.ID)
	if err != nil {
		return "", err
	}
	rendered, err := ss.engine.ApplySignatures(source, signatures)
	if err != nil {
		return "", err
	}

	artifactKey := fmt.Sprintf("items/%s/signed_%s.pdf", item.ID, util.ArtifactKey(rendered))
	if _, uErr := ss.artifacts.Upload(ctx, artifactKey, rendered, "application/pdf"); uErr != nil {
		return "", fmt.Errorf("%w: %s", types.ErrRenderFailed, uErr.Error())
	}
	if sErr := ss.docService.SetArtifactKey(item.ID, artifactKey); sErr != nil {
		return "", sErr
	}
	return artifactKey, nil
}

func (ss *SigningService) checkOrder(itemID string, signer *types.Signer) error {
	signers, err := ss.docService.ListSigners(itemID)
	if err != nil {
		return err
	}
	for _, s := range signers {
		if s.Order < signer.Order && !s.Signed {
			return types.ErrSigningOrder
		}
	}
	return nil
}

// SigningDigest is the hash the custody service signs. It binds the document
// content, the signer and the placement, so a signature cannot be replayed
// onto different content or a different spot.
func SigningDigest(contentHash, userID string, pos types.SignaturePosition) []byte {
	payload := fmt.Sprintf("%s|%s|%d|%d|%d|%d|%d",
		contentHash, userID, pos.Page, pos.X, pos.Y, pos.Width, pos.Height)
	digest := sha256.Sum256([]byte(payload))
	return digest[:]
}
