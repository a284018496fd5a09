// Package nominatim is the open-data place search provider used with the
// vector map backend.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/search"
)

const name = "nominatim"

// DefaultURL is the public instance.
const DefaultURL = "https://nominatim.openstreetmap.org"

// Config configures the provider.
type Config struct {
	BaseURL   string
	UserAgent string
	Limit     int
	Client    *http.Client
}

// Provider queries a Nominatim instance. Resolved places are cached from the
// search response so a selection normally costs no extra request.
type Provider struct {
	base   string
	agent  string
	limit  int
	client *http.Client

	mu    sync.Mutex
	cache map[string]search.Place
}

// New creates a provider.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("nominatim: base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, errors.New("nominatim: a user agent identifying the application is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		agent:  cfg.UserAgent,
		limit:  cfg.Limit,
		client: cfg.Client,
		cache:  make(map[string]search.Place),
	}, nil
}

func (p *Provider) Name() string { return name }

// result is one jsonv2 search or lookup row.
type result struct {
	OSMType     string   `json:"osm_type"`
	OSMID       int64    `json:"osm_id"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"` // south, north, west, east
}

func (r result) placeID() string {
	if r.OSMType == "" {
		return ""
	}
	return strings.ToUpper(r.OSMType[:1]) + strconv.FormatInt(r.OSMID, 10)
}

func (r result) place() (search.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return search.Place{}, fmt.Errorf("nominatim: lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return search.Place{}, fmt.Errorf("nominatim: lon %q: %w", r.Lon, err)
	}
	place := search.Place{Location: orb.Point{lon, lat}, Address: r.DisplayName}

	if len(r.BoundingBox) == 4 {
		var bb [4]float64
		for i, s := range r.BoundingBox {
			if bb[i], err = strconv.ParseFloat(s, 64); err != nil {
				return place, nil
			}
		}
		b := orb.Bound{Min: orb.Point{bb[2], bb[0]}, Max: orb.Point{bb[3], bb[1]}}
		place.Viewport = &b
	}
	return place, nil
}

// Predict searches for text and derives terms and prefix matches from the
// comma-separated display name.
func (p *Provider) Predict(ctx context.Context, text string) ([]search.Prediction, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(p.limit))

	var rows []result
	if err := p.get(ctx, "/search", q, &rows); err != nil {
		return nil, err
	}

	preds := make([]search.Prediction, 0, len(rows))
	for _, r := range rows {
		id := r.placeID()
		if id == "" {
			continue
		}
		if place, err := r.place(); err == nil {
			p.mu.Lock()
			p.cache[id] = place
			p.mu.Unlock()
		}
		terms := splitTerms(r.DisplayName)
		preds = append(preds, search.Prediction{
			Description: r.DisplayName,
			PlaceID:     id,
			Terms:       terms,
			Matches:     prefixMatches(terms, text),
		})
	}
	return preds, nil
}

// Resolve returns the cached place for id, or looks it up.
func (p *Provider) Resolve(ctx context.Context, id string) (search.Place, error) {
	p.mu.Lock()
	place, ok := p.cache[id]
	p.mu.Unlock()
	if ok {
		return place, nil
	}

	q := url.Values{}
	q.Set("osm_ids", id)
	q.Set("format", "jsonv2")

	var rows []result
	if err := p.get(ctx, "/lookup", q, &rows); err != nil {
		return search.Place{}, err
	}
	if len(rows) == 0 {
		return search.Place{}, &search.ServiceError{Provider: name, Status: "NOT_FOUND"}
	}
	return rows[0].place()
}

func (p *Provider) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("nominatim: %w", err)
	}
	req.Header.Set("User-Agent", p.agent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &search.ServiceError{Provider: name, Status: "TRANSPORT", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &search.ServiceError{Provider: name, Status: resp.Status}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &search.ServiceError{Provider: name, Status: "INVALID_RESPONSE", Err: err}
	}
	return nil
}

func splitTerms(s string) []search.Term {
	var terms []search.Term
	offset := 0
	for _, part := range strings.Split(s, ",") {
		lead := utf8.RuneCountInString(part) - utf8.RuneCountInString(strings.TrimLeft(part, " "))
		value := strings.TrimSpace(part)
		if value != "" {
			terms = append(terms, search.Term{Value: value, Offset: offset + lead})
		}
		offset += utf8.RuneCountInString(part) + 1
	}
	return terms
}

// prefixMatches marks each term starting with the query, case-insensitively.
func prefixMatches(terms []search.Term, text string) []search.Match {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n := utf8.RuneCountInString(text)
	var out []search.Match
	for _, t := range terms {
		runes := []rune(t.Value)
		if len(runes) >= n && strings.EqualFold(string(runes[:n]), text) {
			out = append(out, search.Match{Offset: t.Offset, Length: n})
		}
	}
	return out
}
