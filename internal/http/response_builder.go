// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses so every handler
// writes status, headers and body the same way.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budget/internal/core"
)

// errEncodeResponse marks a Write that failed before anything was sent.
var errEncodeResponse = errors.New("encode response")

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Detail sets a {"detail": v} body.
func (b *JSONResponseBuilder) Detail(v any) *JSONResponseBuilder {
	return b.Body(detailBody{Detail: v})
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	payload, err := json.Marshal(b.body)
	if err != nil {
		return fmt.Errorf("%w: %w", errEncodeResponse, err)
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, err = w.Write(payload)
	return err
}

type detailBody struct {
	Detail any `json:"detail"`
}

// fieldErrorBody is one entry of a 422 detail list.
type fieldErrorBody struct {
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
}

// itemBody is the wire form of a stored budget item.
type itemBody struct {
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

func newItemBody(item core.BudgetItem) itemBody {
	return itemBody{
		Category:  item.Category,
		Amount:    item.Amount,
		Currency:  item.Currency,
		Type:      item.Type.String(),
		CreatedAt: item.CreatedAt.UTC(),
		ID:        item.ID,
	}
}

// ItemResponse creates a 200 response carrying one item.
func ItemResponse(item core.BudgetItem) *JSONResponseBuilder {
	return NewJSONResponse().Body(newItemBody(item))
}

// ItemListResponse creates a 200 response carrying items; never null.
func ItemListResponse(items []core.BudgetItem) *JSONResponseBuilder {
	out := make([]itemBody, len(items))
	for i, item := range items {
		out[i] = newItemBody(item)
	}
	return NewJSONResponse().Body(out)
}

// DetailResponse creates a {"detail": message} response.
func DetailResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Detail(message)
}

// ValidationErrorResponse creates a 422 response listing every field error.
func ValidationErrorResponse(errs core.ValidationErrors) *JSONResponseBuilder {
	out := make([]fieldErrorBody, len(errs))
	for i, e := range errs {
		out[i] = fieldErrorBody{Type: e.Type, Loc: e.Loc, Msg: e.Msg}
	}
	return NewJSONResponse().Status(http.StatusUnprocessableEntity).Detail(out)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return DetailResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *JSONResponseBuilder {
	return DetailResponse(http.StatusInternalServerError, "Internal Server Error")
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *JSONResponseBuilder {
	return DetailResponse(http.StatusMethodNotAllowed, "Method Not Allowed")
}

// TooManyRequestsError creates a 429 response. The limiter sets Retry-After.
func TooManyRequestsError() *JSONResponseBuilder {
	return DetailResponse(http.StatusTooManyRequests, "Rate limit exceeded")
}

// RequestTooLargeError creates a 413 response.
func RequestTooLargeError() *JSONResponseBuilder {
	return DetailResponse(http.StatusRequestEntityTooLarge, "Request body too large")
}
