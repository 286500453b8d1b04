package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ApiError is the error envelope every REST endpoint returns on failure
type ApiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ApiErrorf aborts the request with the given status and a formatted message
func ApiErrorf(c *gin.Context, code int, format string, args ...interface{}) ApiError {
	apiErr := ApiError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
	c.AbortWithStatusJSON(code, apiErr)
	return apiErr
}

// ValidatorErrorToUser flattens field validation errors into one user facing
// message
func ValidatorErrorToUser(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fieldErr.Field()))
		case "email":
			messages = append(messages, fmt.Sprintf("%s is not a valid email", fieldErr.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", fieldErr.Field(), fieldErr.Param()))
		default:
			messages = append(messages, fmt.Sprintf("validation failed on field %s", fieldErr.Field()))
		}
	}
	return strings.Join(messages, ". ")
}
