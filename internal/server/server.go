// Package server assembles the geofield HTTP server: the Huma REST API, the
// Datastar editor handlers and the field page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/geofield/internal/api"
	"github.com/joeblew999/geofield/internal/api/editor"
	"github.com/joeblew999/geofield/internal/config"
	"github.com/joeblew999/geofield/internal/db"
	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/loader"
	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/search"
	"github.com/joeblew999/geofield/internal/search/googleplaces"
	"github.com/joeblew999/geofield/internal/search/nominatim"
	"github.com/joeblew999/geofield/internal/service"
	"github.com/joeblew999/geofield/internal/templates"
	"github.com/joeblew999/geofield/web"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	App     *config.Config
	Logger  *slog.Logger

	// WebDir overrides the embedded templates and static files.
	WebDir string

	// Register overrides the map library register, for tests.
	Register *loader.Register

	// Providers overrides the place providers built from App.Search.
	Providers field.ProviderFunc
}

// Server is the geofield HTTP server.
type Server struct {
	config    Config
	mux       *http.ServeMux
	humaAPI   huma.API
	links     *humastar.Links
	services  *api.Services
	renderer  *templates.Renderer
	bus       *service.EventBus
	libs      *loader.Register
	providers field.ProviderFunc
	log       *slog.Logger
}

// New creates a new geofield server.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("server: application config is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	libs := cfg.Register
	if libs == nil {
		libs = loader.NewRegister()
	}

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	humaConfig := huma.DefaultConfig("geofield API", api.Version)
	humaConfig.Info.Description = "Map shape fields: mount field widgets, edit their shape and store form entries."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	site, err := siteFS(cfg.WebDir)
	if err != nil {
		return nil, err
	}
	renderer, err := templates.New(site, web.Templates...)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	providers := cfg.Providers
	if providers == nil {
		if providers, err = newProviders(cfg.App.Search); err != nil {
			return nil, err
		}
	}

	bus := service.NewEventBus()
	boot := &field.Bootstrapper{
		Register:  libs,
		Timeout:   cfg.App.Bootstrap.Timeout,
		Providers: providers,
		Logger:    log,
	}
	fields := service.NewFieldService(cfg.App.Fields, boot, bus)

	store, err := newEntryStore(cfg.App.Store.Driver, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		links:   links,
		services: &api.Services{
			Fields:  fields,
			Entries: service.NewEntryService(fields, store, bus),
		},
		renderer:  renderer,
		bus:       bus,
		libs:      libs,
		providers: providers,
		log:       log,
	}
	s.routes(site)
	return s, nil
}

func siteFS(webDir string) (fs.FS, error) {
	if webDir == "" {
		return web.FS, nil
	}
	if _, err := os.Stat(webDir); err != nil {
		return nil, fmt.Errorf("web dir: %w", err)
	}
	return os.DirFS(webDir), nil
}

// newProviders maps each backend to a place provider. Hosted fields use the
// hosted stack's own places service when it is configured; vector fields
// always use the open-data geocoder.
func newProviders(cfg config.SearchConfig) (field.ProviderFunc, error) {
	if cfg.Provider == config.ProviderNone {
		return nil, nil
	}

	open, err := nominatim.New(nominatim.Config{
		BaseURL:   cfg.Nominatim.URL,
		UserAgent: cfg.Nominatim.UserAgent,
		Limit:     cfg.Nominatim.Limit,
	})
	if err != nil {
		return nil, err
	}
	var hostedProvider search.Provider = open
	if cfg.Provider == config.ProviderGoogle {
		g, err := googleplaces.New(googleplaces.Config{
			APIKey:  cfg.Google.APIKey,
			BaseURL: cfg.Google.BaseURL,
			Region:  cfg.Google.Region,
		})
		if err != nil {
			return nil, err
		}
		hostedProvider = g
	}

	return func(backend mapadapter.Backend) search.Provider {
		if backend == mapadapter.BackendHosted {
			return hostedProvider
		}
		return open
	}, nil
}

func newEntryStore(driver, dataDir string) (service.EntryStore, error) {
	if driver == config.DriverFile {
		return service.NewFileEntryStore(dataDir), nil
	}
	conn, err := db.Open(db.Config{DataDir: dataDir, DBName: "geofield"})
	if err != nil {
		return nil, err
	}
	store, err := service.NewDuckDBEntryStore(context.Background(), conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close unmounts every field and closes the entry store.
func (s *Server) Close() error {
	s.services.Fields.Close()
	return s.services.Entries.Close()
}

func (s *Server) routes(site fs.FS) {
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))

	info := api.NewInfoHandler(s.config.DataDir, s.config.App.Store.Driver, s.config.App.Search.Provider, s.libs)
	info.RegisterRoutes(s.humaAPI)

	base := editor.NewHandler(s.services.Fields, humastar.Handler{Renderer: s.renderer})
	editor.NewFieldHandler(base, s.services.Entries).RegisterRoutes(s.humaAPI)
	editor.NewSearchHandler(base).RegisterRoutes(s.humaAPI)
	editor.NewStreamHandler(base, s.bus).RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	if static, err := fs.Sub(site, "static"); err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}
	s.mux.HandleFunc("GET /field/{name}", s.handleField)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For(humastar.EntryPoint) {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "geofield",
		"status":  "running",
	})
}

// libraryURL returns the script that loads a backend's map library.
func (s *Server) libraryURL(backend string) string {
	if backend == string(mapadapter.BackendHosted) {
		q := url.Values{"libraries": {"drawing,places"}}
		if key := s.config.App.Search.Google.APIKey; key != "" {
			q.Set("key", key)
		}
		return "https://maps.googleapis.com/maps/api/js?" + q.Encode()
	}
	return "https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.js"
}
