package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/loader"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "0.1.0"

type InfoHandler struct {
	dataDir   string
	store     string
	provider  string
	libraries *loader.Register
}

func NewInfoHandler(dataDir, store, provider string, libraries *loader.Register) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, store: store, provider: provider, libraries: libraries}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string                   `json:"name" doc:"Service name"`
	Version   string                   `json:"version" doc:"Service version"`
	DataDir   string                   `json:"data_dir" doc:"Data directory path"`
	Store     string                   `json:"store" doc:"Entry store driver"`
	Search    string                   `json:"search" doc:"Place search provider"`
	Libraries map[string]loader.Status `json:"libraries" doc:"Map library load status"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *humastar.EmptyInput) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "geofield",
		Version:   Version,
		DataDir:   h.dataDir,
		Store:     h.store,
		Search:    h.provider,
		Libraries: h.libraries.Snapshot(),
	}}, nil
}
