package respond

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// Success represents a standard structure for successful responses.
type Success struct {
	Result interface{} `json:"result"`
}

// Error represents a standard structure for error responses.
type Error struct {
	Message string `json:"message"`
}

// Attachment sends data as a downloadable file with the given content type.
func Attachment(c *ginext.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// JSON sends a JSON response with the specified HTTP status code and data.
// It uses the Gin context to encode the data into JSON format.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response, wrapping the given result in a Success struct.
func OK(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusOK, Success{Result: result})
}

// Created sends a 201 Created JSON response, wrapping the given result in a Success struct.
func Created(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusCreated, Success{Result: result})
}

// Accepted sends a 202 Accepted JSON response, wrapping the given result in a Success struct.
func Accepted(c *ginext.Context, result interface{}) {
	JSON(c, http.StatusAccepted, Success{Result: result})
}

// Fail sends an error JSON response with the specified HTTP status code.
// The error message is wrapped in an Error struct.
func Fail(c *ginext.Context, status int, err error) {
	JSON(c, status, Error{Message: err.Error()})
}

// FailWith sends err with the status matching its kind.
func FailWith(c *ginext.Context, err error) {
	Fail(c, Status(err), err)
}

// Status maps pipeline errors to HTTP status codes: bad parameters and
// unknown transforms are client errors, unreadable sources and outputs
// that cannot be assembled are unprocessable, anything else is internal.
func Status(err error) int {
	var (
		verr *model.ValidationError
		nerr *model.TransformNotFoundError
		derr *model.DecodeError
		aerr *model.AssemblyError
	)

	switch {
	case errors.As(err, &verr), errors.As(err, &nerr):
		return http.StatusBadRequest
	case errors.As(err, &derr), errors.As(err, &aerr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
