package repository

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// CreateItemIDIndex creates an index on the itemId field, used by signer and
// signature lookups per signable item.
func CreateItemIDIndex(repo Repository) error {
	dbName := repo.GetDBName()
	itemIDIndex := map[string]interface{}{
		"index": map[string]interface{}{
			"fields": []string{"itemId"},
		},
		"name": "itemId-index",
		"type": "json",
		"ddoc": "itemId-index",
	}
	c := repo.GetClient().(*resty.Client)
	resp, rErr := c.R().SetBody(itemIDIndex).Post(fmt.Sprintf("%s/%s", dbName, "_index"))
	if rErr != nil {
		return rErr
	}
	if resp.IsError() {
		return handleError(resp)
	}
	return nil
}

// CreateBatchIDIndex creates an index on the batchId field of certificates
func CreateBatchIDIndex(certRepo Repository) error {
	dbName := certRepo.GetDBName()
	batchIDIndex := map[string]interface{}{
		"index": map[string]interface{}{
			"fields": []string{"batchId"},
		},
		"name": "batchId-index",
		"type": "json",
		"ddoc": "batchId-index",
	}
	c := certRepo.GetClient().(*resty.Client)
	resp, rErr := c.R().SetBody(batchIDIndex).Post(fmt.Sprintf("%s/%s", dbName, "_index"))
	if rErr != nil {
		return rErr
	}
	if resp.IsError() {
		return handleError(resp)
	}
	return nil
}

// CreateDeliveryStatusIndex creates an index used by the retry sweeper to
// find failed deliveries still inside the retry budget
func CreateDeliveryStatusIndex(certRepo Repository) error {
	dbName := certRepo.GetDBName()
	statusIndex := map[string]interface{}{
		"index": map[string]interface{}{
			"fields": []map[string]interface{}{
				{"deliveryStatus": "desc"},
				{"deliveryAttempts": "desc"},
			},
		},
		"name": "delivery-status-index",
		"type": "json",
		"ddoc": "delivery-status-index",
	}
	c := certRepo.GetClient().(*resty.Client)
	resp, rErr := c.R().SetBody(statusIndex).Post(fmt.Sprintf("%s/%s", dbName, "_index"))
	if rErr != nil {
		return rErr
	}
	if resp.IsError() {
		return handleError(resp)
	}
	return nil
}
