package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
)

// implements Repository interface using CouchDB
type CouchDBRepository struct {
	client *resty.Client
	dbName string
}

func NewCouchDBRepository(url, dbName string, username string, password string, mock bool) (Repository, error) {
	cl := resty.New().SetBaseURL(url).SetTimeout(time.Second * 10)
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetBasicAuth(username, password)

	if mock {
		httpmock.ActivateNonDefault(cl.GetClient())
	}

	existsRes, existsErr := cl.R().Head(dbName)
	if existsErr != nil {
		return nil, fmt.Errorf("failed to check if database exists: %s", existsErr.Error())
	}
	if existsRes.StatusCode() == 200 {
		return &CouchDBRepository{cl, dbName}, nil
	}

	// create DB since it doesn't exist
	createRes, createErr := cl.R().Put(dbName)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create database %s: %s", dbName, createErr.Error())
	}
	if createRes.IsError() {
		return nil, fmt.Errorf("failed to create database %s: %s", dbName, createRes.String())
	}
	return &CouchDBRepository{cl, dbName}, nil
}

// GetByID returns a document by its ID
func (c *CouchDBRepository) GetByID(ctx context.Context, id string) (interface{}, error) {
	response, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("%s/%s", c.dbName, id))
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, handleError(response)
	}
	return response, nil
}

// Save creates a new doc or updates an existing one. CouchDB rejects an
// update without the current revision with a 409, surfaced as ErrConflict.
func (c *CouchDBRepository) Save(ctx context.Context, docID string, data interface{}) error {
	response, err := c.client.R().SetContext(ctx).SetBody(data).Put(fmt.Sprintf("%s/%s", c.dbName, docID))
	if err != nil {
		return err
	}
	if response.IsError() {
		return handleError(response)
	}
	return nil
}

// Update updates an existing document (same semantics as Save; the caller
// supplies the _rev inside data)
func (c *CouchDBRepository) Update(ctx context.Context, id string, data interface{}) error {
	return c.Save(ctx, id, data)
}

// Delete deletes a document by its ID
func (c *CouchDBRepository) Delete(ctx context.Context, id string) error {
	doc, err := c.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rev := ""
	if response, ok := doc.(*resty.Response); ok {
		rev = response.Header().Get("Etag")
		if len(rev) >= 2 {
			rev = rev[1 : len(rev)-1] // strip quotes
		}
	}
	response, delErr := c.client.R().SetContext(ctx).SetQueryParam("rev", rev).Delete(fmt.Sprintf("%s/%s", c.dbName, id))
	if delErr != nil {
		return delErr
	}
	if response.IsError() {
		return handleError(response)
	}
	return nil
}

// Find runs a mango _find query against the database
func (c *CouchDBRepository) Find(ctx context.Context, query map[string]interface{}) (interface{}, error) {
	response, err := c.client.R().SetContext(ctx).SetBody(query).Post(fmt.Sprintf("%s/_find", c.dbName))
	if err != nil {
		return nil, err
	}
	if response.IsError() {
		return nil, handleError(response)
	}
	return response, nil
}

// return name of the database
func (c *CouchDBRepository) GetDBName() string {
	return c.dbName
}

// returns a resty client
func (c *CouchDBRepository) GetClient() interface{} {
	return c.client
}
