package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
)

type KeysApi struct {
	keystoreService *services.KeystoreService
	validate        *validator.Validate
}

func NewKeysApi(keystoreService *services.KeystoreService) *KeysApi {
	return &KeysApi{
		keystoreService: keystoreService,
		validate:        validator.New(),
	}
}

// GenerateKeys godoc
// @Summary Generate a signing key pair for a user
// @Description Creates a fresh RSA key pair encrypted under the user secret, replacing any previous pair
// @Tags Keys
// @Accept json
// @Produce json
// @Success 201 {object} types.OutputKeyPair
// @Failure 400 {object} ApiError "invalid input"
// @Router /api/v1/keys [post]
func (ka *KeysApi) GenerateKeys(c *gin.Context) {
	var input types.InputGenerateKeys
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ka.validate.Struct(input); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	kp, err := ka.keystoreService.GenerateKeyPair(input.UserID, input.Secret)
	if err != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to generate key pair")
		return
	}
	c.JSON(http.StatusCreated, types.OutputKeyPair{
		UserID:       kp.UserID,
		Algorithm:    kp.Algorithm,
		PublicKeyPem: kp.PublicKeyPem,
		Fingerprint:  kp.Fingerprint,
		Encrypted:    kp.Encrypted,
		Created:      kp.Created,
	})
}

// GetKeys godoc
// @Summary Get the public half of a user key pair
// @Tags Keys
// @Produce json
// @Success 200 {object} types.OutputKeyPair
// @Failure 404 {object} ApiError "no key pair for user"
// @Router /api/v1/keys/{userId} [get]
func (ka *KeysApi) GetKeys(c *gin.Context) {
	userID := c.Param("userId")
	kp, err := ka.keystoreService.GetKeyPair(userID)
	if err != nil {
		if errors.Is(err, types.ErrNoKey) {
			ApiErrorf(c, http.StatusNotFound, "no key pair for user %s", userID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to load key pair")
		return
	}
	c.JSON(http.StatusOK, types.OutputKeyPair{
		UserID:       kp.UserID,
		Algorithm:    kp.Algorithm,
		PublicKeyPem: kp.PublicKeyPem,
		Fingerprint:  kp.Fingerprint,
		Encrypted:    kp.Encrypted,
		Created:      kp.Created,
	})
}

// DeleteKeys godoc
// @Summary Irreversibly delete a user key pair
// @Tags Keys
// @Produce json
// @Success 204
// @Failure 404 {object} ApiError "no key pair for user"
// @Router /api/v1/keys/{userId} [delete]
func (ka *KeysApi) DeleteKeys(c *gin.Context) {
	userID := c.Param("userId")
	if err := ka.keystoreService.DeleteKeyPair(userID); err != nil {
		if errors.Is(err, types.ErrNoKey) {
			ApiErrorf(c, http.StatusNotFound, "no key pair for user %s", userID)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to delete key pair")
		return
	}
	c.Status(http.StatusNoContent)
}
