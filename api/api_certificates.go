package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/ingest"
	"github.com/sigilo/go-sigilo-server/queue"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
)

type CertificateApi struct {
	docService      *services.DocumentService
	certService     *services.CertificateService
	batchService    *services.BatchService
	keystoreService *services.KeystoreService
	taskQueue       *queue.TaskQueue
	env             *types.Environment
	validate        *validator.Validate
}

func NewCertificateApi(docService *services.DocumentService, certService *services.CertificateService, batchService *services.BatchService, keystoreService *services.KeystoreService, taskQueue *queue.TaskQueue, env *types.Environment) *CertificateApi {
	return &CertificateApi{
		docService:      docService,
		certService:     certService,
		batchService:    batchService,
		keystoreService: keystoreService,
		taskQueue:       taskQueue,
		env:             env,
		validate:        validator.New(),
	}
}

// IssueBulk godoc
// @Summary Issue certificates from a completed template for every row of an uploaded recipient table
// @Tags Certificates
// @Accept mpfd
// @Produce json
// @Success 202 {object} types.OutputBatchSubmitted
// @Failure 401 {object} ApiError "wrong secret"
// @Failure 409 {object} ApiError "template not fully signed"
// @Router /api/v1/templates/{id}/issue [post]
func (ca *CertificateApi) IssueBulk(c *gin.Context) {
	templateID := c.Param("id")
	template, err := ca.docService.GetItem(templateID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "template %s not found", templateID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load template")
		return
	}
	if template.Kind != types.ItemKindTemplate {
		ApiErrorf(c, http.StatusBadRequest, "item %s is not a template", templateID)
		return
	}
	if template.Deleted {
		ApiErrorf(c, http.StatusGone, "template %s is deleted", templateID)
		return
	}
	completed, cErr := ca.docService.IsCompleted(templateID)
	if cErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to check template state")
		return
	}
	if !completed || template.ArtifactKey == "" {
		ApiErrorf(c, http.StatusConflict, "template %s is not fully signed", templateID)
		return
	}

	secret := c.PostForm("secret")
	if sErr := ca.keystoreService.CheckSecret(template.OwnerID, secret); sErr != nil {
		if errors.Is(sErr, types.ErrNoKey) {
			ApiErrorf(c, http.StatusBadRequest, "owner %s has no signing keys", template.OwnerID)
			return
		}
		ApiErrorf(c, http.StatusUnauthorized, "wrong secret")
		return
	}

	fileHeader, fErr := c.FormFile("recipients")
	if fErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "recipients file is required")
		return
	}
	file, oErr := fileHeader.Open()
	if oErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "failed to open recipients file")
		return
	}
	defer file.Close()
	content, rErr := io.ReadAll(file)
	if rErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "failed to read recipients file")
		return
	}

	rows, failedRows, pErr := ingest.ParseRecipientTable(fileHeader.Filename, content)
	if pErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "unreadable recipients file: %s", pErr.Error())
		return
	}
	if len(rows)+len(failedRows) == 0 {
		ApiErrorf(c, http.StatusBadRequest, "recipients file has no data rows")
		return
	}

	batch, bErr := ca.batchService.CreateBatch(templateID, len(rows)+len(failedRows))
	if bErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to create batch")
		return
	}
	for _, fr := range failedRows {
		ca.batchService.IncrFailed(c.Request.Context(), batch.ID)
		level.Info(global.Logger).Log("msg", "recipient row rejected", "batch", batch.ID, "row", fr.Index, "reason", fr.Reason)
	}

	for i, row := range rows {
		eErr := ca.taskQueue.EnqueueIssuance(c.Request.Context(), batch.ID, templateID, row, i+1)
		if eErr == nil {
			continue
		}
		ca.batchService.IncrFailed(c.Request.Context(), batch.ID)
		if errors.Is(eErr, types.ErrConflict) {
			level.Info(global.Logger).Log("msg", "duplicate serial in recipients file", "batch", batch.ID, "row", i+1, "serial", row.Serial)
		} else {
			level.Error(global.Logger).Log("msg", "failed to enqueue issuance row", "batch", batch.ID, "row", i+1, "err", eErr)
		}
	}

	c.JSON(http.StatusAccepted, types.OutputBatchSubmitted{
		BatchID:          batch.ID,
		Total:            batch.Total,
		FailedValidation: len(failedRows),
	})
}

// GetBatch godoc
// @Summary Get the live progress of an issuance batch
// @Tags Certificates
// @Produce json
// @Success 200 {object} types.BatchStatus
// @Failure 404 {object} ApiError "not found"
// @Router /api/v1/batches/{id} [get]
func (ca *CertificateApi) GetBatch(c *gin.Context) {
	batchID := c.Param("id")
	status, err := ca.batchService.Status(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "batch %s not found", batchID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load batch status")
		return
	}
	certs, cErr := ca.certService.ListByBatch(batchID)
	if cErr != nil {
		level.Error(global.Logger).Log("msg", "failed to list batch certificates", "batch", batchID, "err", cErr)
	} else {
		status.Certificates = certs
	}
	c.JSON(http.StatusOK, status)
}

// CancelBatch godoc
// @Summary Cancel an issuance batch, rows not yet started are skipped
// @Tags Certificates
// @Produce json
// @Success 200 {object} types.BatchStatus
// @Failure 404 {object} ApiError "not found"
// @Router /api/v1/batches/{id}/cancel [post]
func (ca *CertificateApi) CancelBatch(c *gin.Context) {
	batchID := c.Param("id")
	if err := ca.batchService.Cancel(c.Request.Context(), batchID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "batch %s not found", batchID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to cancel batch")
		return
	}
	status, sErr := ca.batchService.Status(c.Request.Context(), batchID)
	if sErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to load batch status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// DispatchCertificate godoc
// @Summary Queue email delivery of an issued certificate
// @Tags Certificates
// @Produce json
// @Success 202
// @Failure 404 {object} ApiError "not found"
// @Router /api/v1/certificates/{id}/dispatch [post]
func (ca *CertificateApi) DispatchCertificate(c *gin.Context) {
	certID := c.Param("id")
	cert, err := ca.certService.GetCertificate(certID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "certificate %s not found", certID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load certificate")
		return
	}
	if cert.RecipientEmail == "" {
		ApiErrorf(c, http.StatusBadRequest, "certificate %s has no recipient address", certID)
		return
	}
	if eErr := ca.taskQueue.EnqueueDispatch(c.Request.Context(), cert.ID); eErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to queue delivery")
		return
	}
	c.Status(http.StatusAccepted)
}

// GetCertificate godoc
// @Summary Get an issued certificate with its delivery state
// @Tags Certificates
// @Produce json
// @Success 200 {object} types.Certificate
// @Failure 404 {object} ApiError "not found"
// @Router /api/v1/certificates/{id} [get]
func (ca *CertificateApi) GetCertificate(c *gin.Context) {
	certID := c.Param("id")
	cert, err := ca.certService.GetCertificate(certID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "certificate %s not found", certID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load certificate")
		return
	}
	c.JSON(http.StatusOK, cert)
}
