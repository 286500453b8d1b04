package services

import (
	"testing"

	"github.com/sigilo/go-sigilo-server/types"
	"github.com/tj/assert"
)

func createTestItem(t *testing.T, ds *DocumentService, signers ...types.InputSignerRef) *types.SignableItem {
	t.Helper()
	item := &types.SignableItem{
		Kind:        types.ItemKindDocument,
		OwnerID:     "alice",
		Title:       "nda",
		SourceKey:   "items/test/source.pdf",
		ContentHash: "abc123",
	}
	created, err := ds.CreateItem(item, signers)
	if err != nil {
		t.Fatal(err)
	}
	return created
}

func TestCreateItemWithSigners(t *testing.T) {
	ds := NewDocumentService(newMemSelector())
	item := createTestItem(t, ds,
		types.InputSignerRef{UserID: "bob", Order: 1},
		types.InputSignerRef{UserID: "alice", Order: 0},
	)

	signers, err := ds.ListSigners(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, signers, 2)
	// sorted by signing order
	assert.Equal(t, "alice", signers[0].UserID)
	assert.Equal(t, "bob", signers[1].UserID)
	assert.False(t, signers[0].Signed)
	assert.False(t, signers[1].Signed)
}

func TestCreateItemDuplicateSignerRollsBack(t *testing.T) {
	ds := NewDocumentService(newMemSelector())
	item := &types.SignableItem{
		Kind:      types.ItemKindDocument,
		OwnerID:   "alice",
		SourceKey: "items/test/source.pdf",
	}
	_, err := ds.CreateItem(item, []types.InputSignerRef{
		{UserID: "bob", Order: 0},
		{UserID: "bob", Order: 1},
	})
	assert.Equal(t, types.ErrConflict, err)

	// the half created item is gone, not stranded without its roster
	_, gErr := ds.GetItem(item.ID)
	assert.Equal(t, types.ErrNotFound, gErr)
}

func TestGetSignerNotOnRoster(t *testing.T) {
	ds := NewDocumentService(newMemSelector())
	item := createTestItem(t, ds, types.InputSignerRef{UserID: "alice", Order: 0})
	_, err := ds.GetSigner(item.ID, "mallory")
	assert.Equal(t, types.ErrNotASigner, err)
}

func TestUpdateSignerStaleRevision(t *testing.T) {
	ds := NewDocumentService(newMemSelector())
	item := createTestItem(t, ds, types.InputSignerRef{UserID: "alice", Order: 0})

	first, err := ds.GetSigner(item.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	stale, err := ds.GetSigner(item.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}

	first.Signed = true
	if uErr := ds.UpdateSigner(first); uErr != nil {
		t.Fatal(uErr)
	}

	// the second writer lost the race
	stale.Signed = true
	assert.Equal(t, types.ErrConflict, ds.UpdateSigner(stale))
}

func TestCompletionNeedsAllSigners(t *testing.T) {
	ds := NewDocumentService(newMemSelector())
	item := createTestItem(t, ds,
		types.InputSignerRef{UserID: "alice", Order: 0},
		types.InputSignerRef{UserID: "bob", Order: 1},
	)

	completed, err := ds.IsCompleted(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, completed)

	alice, _ := ds.GetSigner(item.ID, "alice")
	alice.Signed = true
	if uErr := ds.UpdateSigner(alice); uErr != nil {
		t.Fatal(uErr)
	}
	completed, _ = ds.IsCompleted(item.ID)
	assert.False(t, completed)

	bob, _ := ds.GetSigner(item.ID, "bob")
	bob.Signed = true
	if uErr := ds.UpdateSigner(bob); uErr != nil {
		t.Fatal(uErr)
	}
	completed, _ = ds.IsCompleted(item.ID)
	assert.True(t, completed)
}

func TestSoftDeleteKeepsRecords(t *testing.T) {
	ds := NewDocumentService(newMemSelector())
	item := createTestItem(t, ds, types.InputSignerRef{UserID: "alice", Order: 0})

	if err := ds.SoftDelete(item.ID); err != nil {
		t.Fatal(err)
	}

	got, err := ds.GetItem(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, got.Deleted)

	// signer rows survive for the audit trail
	signers, sErr := ds.ListSigners(item.ID)
	if sErr != nil {
		t.Fatal(sErr)
	}
	assert.Len(t, signers, 1)
}
