// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/loader"
	"github.com/joeblew999/geofield/internal/service"
	"github.com/joeblew999/geofield/internal/shape"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Fields  *service.FieldService
	Entries *service.EntryService
}

type IDInput struct {
	ID string `path:"id" doc:"Field instance ID" example:"location_1"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers the entry point.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *humastar.EmptyInput) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

// httpError maps service and domain errors onto Huma status errors.
func httpError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrInstanceNotFound),
		errors.Is(err, service.ErrEntryNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, shape.ErrInvalidTransition),
		errors.Is(err, shape.ErrOverwriteDeclined):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidEntry),
		errors.Is(err, geocodec.ErrInvalidPersistedValue),
		errors.Is(err, geocodec.ErrDegeneratePolygon):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, loader.ErrBootstrapTimeout),
		errors.Is(err, field.ErrNotReady):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}

// rawValue re-encodes a free-form JSON body value.
func rawValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, huma.Error400BadRequest("value: " + err.Error())
	}
	return b, nil
}

func created(o *huma.Operation) {
	o.DefaultStatus = http.StatusCreated
}
