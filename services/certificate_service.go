package services

import (
	"context"
	"sort"
	"time"

	"github.com/go-kit/log/level"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
)

type CertificateService struct {
	certRepo repository.Repository
}

func NewCertificateService(dbSelector repository.DBSelector) *CertificateService {
	certRepo, err := dbSelector.ChooseDB(repository.Certificate)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	return &CertificateService{certRepo: certRepo}
}

// CreateCertificate stores an issued certificate. The document ID is derived
// from template and serial, so issuing the same serial twice for a template
// fails with ErrConflict.
func (cs *CertificateService) CreateCertificate(cert *types.Certificate) (*types.Certificate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	cert.ID = types.CertificateDocID(cert.TemplateID, cert.Serial)
	cert.IssuedAt = time.Now().UTC().UnixMilli()
	if err := cs.certRepo.Save(ctx, cert.ID, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

func (cs *CertificateService) GetCertificate(certID string) (*types.Certificate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	resp, err := cs.certRepo.GetByID(ctx, certID)
	if err != nil {
		return nil, err
	}
	var cert types.Certificate
	if mErr := repository.MapToObject(resp, &cert); mErr != nil {
		return nil, mErr
	}
	return &cert, nil
}

// UpdateCertificate writes the certificate back, refreshing the revision
// first. Delivery state has a single writer, so last write wins is safe
// here.
func (cs *CertificateService) UpdateCertificate(cert *types.Certificate) error {
	existing, err := cs.GetCertificate(cert.ID)
	if err != nil {
		return err
	}
	cert.UnderscoreRev = existing.UnderscoreRev
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return cs.certRepo.Update(ctx, cert.ID, cert)
}

// ListByBatch returns all certificates issued by a batch in serial order
func (cs *CertificateService) ListByBatch(batchID string) ([]*types.Certificate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"batchId": batchID,
		},
		"limit":     10000,
		"use_index": "batchId-index",
	}
	resp, err := cs.certRepo.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	var found types.FindResponse[*types.Certificate]
	if mErr := repository.MapFindResponse(resp, &found); mErr != nil {
		return nil, mErr
	}
	sort.SliceStable(found.Docs, func(i, j int) bool {
		return found.Docs[i].Serial < found.Docs[j].Serial
	})
	return found.Docs, nil
}
