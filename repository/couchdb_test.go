package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/stretchr/testify/assert"
)

var url = "http://localhost:5689"

func InitMockDatabase(dbName string) (Repository, error) {
	httpmock.Activate()

	mr, mErr := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	if mErr != nil {
		return nil, mErr
	}
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s", url, dbName), mr)
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", url, dbName), mr)

	db, err := NewCouchDBRepository(url, dbName, "test", "test", true)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func deactivateMock() {
	httpmock.DeactivateAndReset()
}

func TestInitNewDatabase(t *testing.T) {
	db, err := InitMockDatabase("test")
	defer deactivateMock()
	if err != nil {
		t.Fatal(err)
	}
	if db == nil {
		t.Fatal("db is nil")
	}
}

func TestSaveAndGetByID(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", url, "test", "doc1"), mk)

	mk, _ = httpmock.NewJsonResponder(200, types.Signer{ItemID: "item1", UserID: "alice"})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", url, "test", "doc1"), mk)

	sErr := db.Save(context.Background(), "doc1", &types.Signer{ItemID: "item1", UserID: "alice"})
	if sErr != nil {
		t.Fatal(sErr)
	}
	res, err := db.GetByID(context.Background(), "doc1")
	if err != nil {
		t.Fatal(err)
	}
	var signer types.Signer
	if mapErr := MapToObject(res, &signer); mapErr != nil {
		t.Fatal(mapErr)
	}
	assert.Equal(t, "item1", signer.ItemID)
	assert.Equal(t, "alice", signer.UserID)
}

func TestGetByIDNotFound(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(404, types.CouchDBError{Error: "not_found", Reason: "missing"})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", url, "test", "missing"), mk)

	_, err := db.GetByID(context.Background(), "missing")
	assert.Equal(t, types.ErrNotFound, err)
}

func TestSaveConflict(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(409, types.CouchDBError{Error: "conflict", Reason: "Document update conflict."})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", url, "test", "doc1"), mk)

	err := db.Save(context.Background(), "doc1", &types.Signer{ItemID: "item1", UserID: "alice"})
	assert.Equal(t, types.ErrConflict, err)
}

func TestFind(t *testing.T) {
	db, _ := InitMockDatabase("test")
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(200, types.FindResponse[types.Signer]{
		Docs: []types.Signer{
			{ItemID: "item1", UserID: "alice"},
			{ItemID: "item1", UserID: "bob"},
		},
	})
	httpmock.RegisterResponder("POST", fmt.Sprintf("%s/%s/_find", url, "test"), mk)

	res, err := db.Find(context.Background(), map[string]interface{}{
		"selector": map[string]interface{}{"itemId": "item1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var found types.FindResponse[types.Signer]
	if mapErr := MapFindResponse(res, &found); mapErr != nil {
		t.Fatal(mapErr)
	}
	assert.Len(t, found.Docs, 2)
	assert.Equal(t, "bob", found.Docs[1].UserID)
}
