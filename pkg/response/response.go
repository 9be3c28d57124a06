package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbushost/provisioner/pkg/apperr"
)

// Success is the envelope returned by every endpoint on the happy path.
type Success[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// Failure carries a human-readable error and, when available, a machine code.
type Failure struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OK writes {success: true, data}.
func OK[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Success[T]{Success: true, Data: data})
}

// Err maps the error taxonomy to an HTTP status and writes {error, code}.
func Err(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), Failure{Error: err.Error(), Code: string(apperr.CodeOf(err))})
}

// BadRequest writes a 400 for malformed request bodies.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Failure{Error: err.Error(), Code: string(apperr.CodeBadRequest)})
}
