package httputil

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/validator"
)

const (
	// RetryAfterSeconds is advertised on retryable error responses
	RetryAfterSeconds = 5
	// RequestIDKey is the gin context key the request id middleware sets
	RequestIDKey = "request_id"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// RespondWithError maps err onto a status code and a dismissable message
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}

	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}
	if appErr.Retryable() {
		c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}

	c.JSON(status, &Response{
		Status:  "error",
		Message: appErr.Message,
		Kind:    string(appErr.Kind),
		Data:    appErr.Details,
	})
}

// RespondWithBindError reports a malformed or invalid request body
func RespondWithBindError(c *gin.Context, err error) {
	RespondWithError(c, validator.Translate(err))
}
