package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	apperrors "github.com/tborlee/points-verts-web/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

var codeStatus = map[string]int{
	walks.CodeInvalidInput:      http.StatusBadRequest,
	walks.CodeInvalidCoordinate: http.StatusBadRequest,
	walks.CodeSessionNotFound:   http.StatusNotFound,
	walks.CodeLocationConflict:  http.StatusConflict,
	walks.CodeDataUnavailable:   http.StatusBadGateway,
}

// fromDomainError maps an apperrors code onto a response. Unknown codes and
// plain errors become 500s.
func fromDomainError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
		if code == "" {
			return &HTTPError{
				Status:  status,
				Code:    "internal_error",
				Message: "something went wrong",
				Err:     err,
			}
		}
	}
	return &HTTPError{Status: status, Code: code, Message: apperrors.MessageOf(err), Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return fromDomainError(err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
