package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/sigilo/go-sigilo-server/util"
)

// VerificationApi is the public verification surface. It never requires
// authentication and never exposes key material or recipient addresses.
type VerificationApi struct {
	docService  *services.DocumentService
	certService *services.CertificateService
	artifacts   services.ArtifactStore
}

func NewVerificationApi(docService *services.DocumentService, certService *services.CertificateService, artifacts services.ArtifactStore) *VerificationApi {
	return &VerificationApi{
		docService:  docService,
		certService: certService,
		artifacts:   artifacts,
	}
}

// Verify godoc
// @Summary Publicly verify a signed document or an issued certificate by its ID
// @Tags Verification
// @Produce json
// @Success 200 {object} types.OutputVerification
// @Failure 404 {object} types.OutputVerification "unknown id"
// @Router /verify/{id} [get]
func (va *VerificationApi) Verify(c *gin.Context) {
	id := c.Param("id")

	cert, err := va.certService.GetCertificate(id)
	if err == nil {
		out := types.OutputVerification{
			Status:           "verified",
			Kind:             "certificate",
			Completed:        true,
			IssuedAt:         cert.IssuedAt,
			VerificationHash: va.artifactHash(cert.ArtifactKey),
		}
		// a certificate carries the roster of its source template
		signers, sErr := va.docService.ListSigners(cert.TemplateID)
		if sErr != nil {
			ApiErrorf(c, http.StatusInternalServerError, "verification failed")
			return
		}
		for _, s := range signers {
			out.Signers = append(out.Signers, types.OutputSigner{
				UserID:   s.UserID,
				Order:    s.Order,
				Signed:   s.Signed,
				SignedAt: s.SignedAt,
			})
		}
		c.JSON(http.StatusOK, out)
		return
	}
	if !errors.Is(err, types.ErrNotFound) {
		ApiErrorf(c, http.StatusInternalServerError, "verification failed")
		return
	}

	item, iErr := va.docService.GetItem(id)
	if iErr != nil || item.Deleted {
		c.JSON(http.StatusNotFound, types.OutputVerification{Status: "not-found"})
		return
	}
	signers, sErr := va.docService.ListSigners(id)
	if sErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "verification failed")
		return
	}
	out := types.OutputVerification{
		Status:    "verified",
		Kind:      item.Kind,
		Completed: len(signers) > 0,
	}
	for _, s := range signers {
		if !s.Signed {
			out.Completed = false
		}
		out.Signers = append(out.Signers, types.OutputSigner{
			UserID:   s.UserID,
			Order:    s.Order,
			Signed:   s.Signed,
			SignedAt: s.SignedAt,
		})
	}
	if out.Completed && item.ArtifactKey != "" {
		out.VerificationHash = va.artifactHash(item.ArtifactKey)
	}
	c.JSON(http.StatusOK, out)
}

func (va *VerificationApi) artifactHash(artifactKey string) string {
	if artifactKey == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	content, err := va.artifacts.Download(ctx, artifactKey)
	if err != nil {
		return ""
	}
	return util.Sha256Hex(content)
}
