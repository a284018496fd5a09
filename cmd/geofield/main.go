package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geofield/internal/api"
	"github.com/joeblew999/geofield/internal/config"
	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/logging"
	"github.com/joeblew999/geofield/internal/server"
)

// Options defines all CLI flags and env vars for the geofield server.
// Flags: --host, --port, --config, --data-dir, --web-dir
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_DATA_DIR, SERVICE_WEB_DIR
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	Config  string `doc:"Path to geofield.yaml (searched in . and ./configs when empty)" short:"c"`
	DataDir string `doc:"Directory for the entry store" default:".data"`
	WebDir  string `doc:"Serve templates and static files from this directory instead of the embedded copy"`
}

func newServer(opts *Options) (*server.Server, *config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	srv, err := server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		WebDir:  opts.WebDir,
		App:     cfg,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, cfg, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpServer *http.Server

		hooks.OnStart(func() {
			s, cfg, err := newServer(opts)
			if err != nil {
				fatal(err)
			}
			srv = s

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fields := make([]string, 0, len(cfg.Fields))
			for _, f := range cfg.Fields {
				fields = append(fields, baseURL+"/field/"+f.Name)
			}

			fmt.Println()
			fmt.Printf("geofield server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (%s)\n", opts.DataDir, cfg.Store.Driver)
			fmt.Printf("  Search:  %s\n", cfg.Search.Provider)
			fmt.Println()
			fmt.Printf("  Fields:  %s\n", strings.Join(fields, ", "))
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer != nil {
				httpServer.Close()
			}
			if srv != nil {
				if err := srv.Close(); err != nil {
					slog.Error("close server", "error", err)
				}
			}
		})
	})

	cli.Root().Use = "geofield"
	cli.Root().Short = "Map shape fields for web forms"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts)
			if err != nil {
				fatal(err)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			output, err := marshal(srv.OpenAPI(), useYAML)
			if err != nil {
				fatal(fmt.Errorf("marshaling spec: %w", err))
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// codec subcommand: normalise stored field values offline
	codecCmd := &cobra.Command{
		Use:   "codec",
		Short: "Inspect stored field values",
	}
	decodeCmd := &cobra.Command{
		Use:   "decode [value]",
		Short: "Decode a stored value (argument or stdin) and print it normalised",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 1 {
				raw = []byte(args[0])
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = b
			}

			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				return fmt.Errorf("value is not JSON: %w", err)
			}
			enc, _ := cmd.Flags().GetString("encoding")
			body, err := api.DecodeValue(value, geocodec.Encoding(enc))
			if err != nil {
				return err
			}

			useYAML, _ := cmd.Flags().GetBool("yaml")
			output, err := marshal(body, useYAML)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		},
	}
	decodeCmd.Flags().StringP("encoding", "e", string(geocodec.EncodingGeoJSON), "Encoding to normalise to (geojson|legacy)")
	decodeCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	codecCmd.AddCommand(decodeCmd)
	cli.Root().AddCommand(codecCmd)

	cli.Run()
}

func marshal(v any, useYAML bool) ([]byte, error) {
	if useYAML {
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
