package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sigilo/go-sigilo-server/metrics"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
	"github.com/sigilo/go-sigilo-server/util"
)

type DocumentApi struct {
	docService     *services.DocumentService
	signingService *services.SigningService
	artifacts      services.ArtifactStore
	validate       *validator.Validate
}

func NewDocumentApi(docService *services.DocumentService, signingService *services.SigningService, artifacts services.ArtifactStore) *DocumentApi {
	return &DocumentApi{
		docService:     docService,
		signingService: signingService,
		artifacts:      artifacts,
		validate:       validator.New(),
	}
}

// CreateDocument godoc
// @Summary Register a document or certificate template with its signers
// @Tags Documents
// @Accept json
// @Produce json
// @Success 201 {object} types.OutputItem
// @Failure 400 {object} ApiError "invalid input"
// @Router /api/v1/documents [post]
func (da *DocumentApi) CreateDocument(c *gin.Context) {
	var input types.InputCreateItem
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := da.validate.Struct(input); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}
	content, err := base64.StdEncoding.DecodeString(input.FileBase64)
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "file is not valid base64")
		return
	}

	itemID := uuid.NewString()
	sourceKey := fmt.Sprintf("items/%s/source.pdf", itemID)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	if _, uErr := da.artifacts.Upload(ctx, sourceKey, content, "application/pdf"); uErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to store document")
		return
	}

	item := &types.SignableItem{
		Kind:        input.Kind,
		OwnerID:     input.OwnerID,
		Title:       input.Title,
		SourceKey:   sourceKey,
		ContentHash: util.Sha256Hex(content),
	}
	item.ID = itemID
	created, cErr := da.docService.CreateItem(item, input.Signers)
	if cErr != nil {
		if errors.Is(cErr, types.ErrConflict) {
			ApiErrorf(c, http.StatusConflict, "duplicate signer on item")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to create item")
		return
	}
	c.JSON(http.StatusCreated, types.OutputItem{
		ID:      created.ID,
		Kind:    created.Kind,
		Title:   created.Title,
		Created: created.Created,
	})
}

// GetDocument godoc
// @Summary Get a document with its signer roster and completion state
// @Tags Documents
// @Produce json
// @Success 200 {object} types.OutputItem
// @Failure 404 {object} ApiError "not found"
// @Router /api/v1/documents/{id} [get]
func (da *DocumentApi) GetDocument(c *gin.Context) {
	itemID := c.Param("id")
	item, err := da.docService.GetItem(itemID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "item %s not found", itemID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load item")
		return
	}
	if item.Deleted {
		ApiErrorf(c, http.StatusGone, "item %s is deleted", itemID)
		return
	}
	signers, sErr := da.docService.ListSigners(itemID)
	if sErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to load signers")
		return
	}
	out := types.OutputItem{
		ID:      item.ID,
		Kind:    item.Kind,
		Title:   item.Title,
		Created: item.Created,
	}
	out.Completed = len(signers) > 0
	for _, s := range signers {
		if !s.Signed {
			out.Completed = false
		}
		out.Signers = append(out.Signers, *s)
	}
	c.JSON(http.StatusOK, out)
}

// SignDocument godoc
// @Summary Apply a signature to a document as one of its designated signers
// @Tags Documents
// @Accept json
// @Produce json
// @Success 200 {object} types.OutputSignResult
// @Failure 400 {object} ApiError "invalid input"
// @Failure 401 {object} ApiError "wrong secret"
// @Failure 403 {object} ApiError "not a designated signer"
// @Failure 409 {object} ApiError "already signed or out of order"
// @Router /api/v1/documents/{id}/sign [post]
func (da *DocumentApi) SignDocument(c *gin.Context) {
	itemID := c.Param("id")
	var input types.InputSign
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := da.validate.Struct(input); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}
	if err := da.validate.Struct(input.Position); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	result, err := da.signingService.Sign(itemID, &input)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			ApiErrorf(c, http.StatusNotFound, "item %s not found", itemID)
		case errors.Is(err, types.ErrItemDeleted):
			ApiErrorf(c, http.StatusGone, "item %s is deleted", itemID)
		case errors.Is(err, types.ErrNotASigner):
			ApiErrorf(c, http.StatusForbidden, "user %s is not a designated signer", input.UserID)
		case errors.Is(err, types.ErrAlreadySigned):
			ApiErrorf(c, http.StatusConflict, "user %s already signed", input.UserID)
		case errors.Is(err, types.ErrSigningOrder):
			ApiErrorf(c, http.StatusConflict, "earlier signers have not signed yet")
		case errors.Is(err, types.ErrNoKey):
			ApiErrorf(c, http.StatusBadRequest, "user %s has no signing keys", input.UserID)
		case errors.Is(err, types.ErrInvalidCredentials):
			ApiErrorf(c, http.StatusUnauthorized, "wrong secret")
		case errors.Is(err, types.ErrPositionOutOfBounds):
			ApiErrorf(c, http.StatusBadRequest, "signature position is out of bounds")
		default:
			ApiErrorf(c, http.StatusInternalServerError, "failed to sign")
		}
		return
	}
	metrics.DocumentsSigned.Inc()
	if result.Completed {
		metrics.ItemsCompleted.Inc()
	}
	c.JSON(http.StatusOK, result)
}

// DeleteDocument godoc
// @Summary Soft delete a document, keeping its audit trail
// @Tags Documents
// @Produce json
// @Success 204
// @Failure 404 {object} ApiError "not found"
// @Router /api/v1/documents/{id} [delete]
func (da *DocumentApi) DeleteDocument(c *gin.Context) {
	itemID := c.Param("id")
	if err := da.docService.SoftDelete(itemID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ApiErrorf(c, http.StatusNotFound, "item %s not found", itemID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to delete item")
		return
	}
	c.Status(http.StatusNoContent)
}
