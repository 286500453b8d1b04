package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
)

type DocumentService struct {
	itemRepo      repository.Repository
	signerRepo    repository.Repository
	signatureRepo repository.Repository
}

func NewDocumentService(dbSelector repository.DBSelector) *DocumentService {
	itemRepo, err := dbSelector.ChooseDB(repository.SignableItem)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	signerRepo, err := dbSelector.ChooseDB(repository.Signer)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	signatureRepo, err := dbSelector.ChooseDB(repository.Signature)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	return &DocumentService{
		itemRepo:      itemRepo,
		signerRepo:    signerRepo,
		signatureRepo: signatureRepo,
	}
}

// CreateItem stores a signable item together with its signer roster. Each
// signer row gets a deterministic document ID so a user appears at most once
// per item.
func (ds *DocumentService) CreateItem(item *types.SignableItem, signers []types.InputSignerRef) (*types.SignableItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC().UnixMilli()
	item.Created = now
	item.Modified = now
	if err := ds.itemRepo.Save(ctx, item.ID, item); err != nil {
		return nil, err
	}

	for _, ref := range signers {
		signer := &types.Signer{
			ItemID:  item.ID,
			UserID:  ref.UserID,
			Order:   ref.Order,
			Created: now,
		}
		docID := types.SignerDocID(item.ID, ref.UserID)
		if err := ds.signerRepo.Save(ctx, docID, signer); err != nil {
			ds.rollbackItem(ctx, item.ID)
			if errors.Is(err, types.ErrConflict) {
				return nil, types.ErrConflict
			}
			return nil, err
		}
	}
	return item, nil
}

// rollbackItem removes a half created item so a roster failure does not leave
// an item without its signers
func (ds *DocumentService) rollbackItem(ctx context.Context, itemID string) {
	if err := ds.itemRepo.Delete(ctx, itemID); err != nil {
		level.Error(global.Logger).Log("msg", "failed to roll back item", "item", itemID, "err", err)
	}
}

func (ds *DocumentService) GetItem(itemID string) (*types.SignableItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	resp, err := ds.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	var item types.SignableItem
	if mErr := repository.MapToObject(resp, &item); mErr != nil {
		return nil, mErr
	}
	return &item, nil
}

// GetSigner returns the signer row for the user on the item, ErrNotASigner
// when the user is not on the roster
func (ds *DocumentService) GetSigner(itemID, userID string) (*types.Signer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	resp, err := ds.signerRepo.GetByID(ctx, types.SignerDocID(itemID, userID))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotASigner
		}
		return nil, err
	}
	var signer types.Signer
	if mErr := repository.MapToObject(resp, &signer); mErr != nil {
		return nil, mErr
	}
	return &signer, nil
}

// UpdateSigner writes the signer row back. CouchDB rejects the write with a
// conflict when the revision is stale, which is how a lost race surfaces.
func (ds *DocumentService) UpdateSigner(signer *types.Signer) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return ds.signerRepo.Update(ctx, types.SignerDocID(signer.ItemID, signer.UserID), signer)
}

// ListSigners returns the full roster for an item ordered by signing order
func (ds *DocumentService) ListSigners(itemID string) ([]*types.Signer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"itemId": itemID,
		},
		"limit":     1000,
		"use_index": "itemId-index",
	}
	resp, err := ds.signerRepo.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	var found types.FindResponse[*types.Signer]
	if mErr := repository.MapFindResponse(resp, &found); mErr != nil {
		return nil, mErr
	}
	sort.SliceStable(found.Docs, func(i, j int) bool {
		if found.Docs[i].Order != found.Docs[j].Order {
			return found.Docs[i].Order < found.Docs[j].Order
		}
		return found.Docs[i].UserID < found.Docs[j].UserID
	})
	return found.Docs, nil
}

func (ds *DocumentService) CreateSignature(signature *types.Signature) (*types.Signature, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if signature.ID == "" {
		signature.ID = uuid.NewString()
	}
	signature.Created = time.Now().UTC().UnixMilli()
	if err := ds.signatureRepo.Save(ctx, signature.ID, signature); err != nil {
		return nil, err
	}
	return signature, nil
}

// ListSignatures returns all signatures applied to an item in creation order
func (ds *DocumentService) ListSignatures(itemID string) ([]*types.Signature, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"itemId": itemID,
		},
		"limit":     1000,
		"use_index": "itemId-index",
	}
	resp, err := ds.signatureRepo.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	var found types.FindResponse[*types.Signature]
	if mErr := repository.MapFindResponse(resp, &found); mErr != nil {
		return nil, mErr
	}
	sort.SliceStable(found.Docs, func(i, j int) bool {
		if found.Docs[i].Created != found.Docs[j].Created {
			return found.Docs[i].Created < found.Docs[j].Created
		}
		return found.Docs[i].UserID < found.Docs[j].UserID
	})
	return found.Docs, nil
}

// IsCompleted derives completion from the signer rows. It is never stored,
// so it cannot drift from the roster.
func (ds *DocumentService) IsCompleted(itemID string) (bool, error) {
	signers, err := ds.ListSigners(itemID)
	if err != nil {
		return false, err
	}
	if len(signers) == 0 {
		return false, nil
	}
	for _, s := range signers {
		if !s.Signed {
			return false, nil
		}
	}
	return true, nil
}

// SetArtifactKey records the location of the latest rendered artifact
func (ds *DocumentService) SetArtifactKey(itemID, artifactKey string) error {
	item, err := ds.GetItem(itemID)
	if err != nil {
		return err
	}
	item.ArtifactKey = artifactKey
	item.Modified = time.Now().UTC().UnixMilli()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return ds.itemRepo.Update(ctx, item.ID, item)
}

// SoftDelete flags the item as deleted. Signer rows and signatures stay for
// the audit trail, all signing is refused from here on.
func (ds *DocumentService) SoftDelete(itemID string) error {
	item, err := ds.GetItem(itemID)
	if err != nil {
		return err
	}
	item.Deleted = true
	item.Modified = time.Now().UTC().UnixMilli()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return ds.itemRepo.Update(ctx, item.ID, item)
}
