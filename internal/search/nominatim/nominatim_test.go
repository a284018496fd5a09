package nominatim_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/search"
	"github.com/joeblew999/geofield/internal/search/nominatim"
)

const bathRows = `[{
	"osm_type": "relation",
	"osm_id": 42,
	"lat": "51.38",
	"lon": "-2.36",
	"display_name": "Bath, Bath and North East Somerset, England",
	"boundingbox": ["51.35", "51.41", "-2.41", "-2.30"]
}]`

func TestPredictAndResolveFromCache(t *testing.T) {
	var lookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "geofield-test" {
			t.Errorf("user agent=%q", r.Header.Get("User-Agent"))
		}
		if r.URL.Query().Get("q") != "bat" {
			t.Errorf("q=%q", r.URL.Query().Get("q"))
		}
		w.Write([]byte(bathRows))
	})
	mux.HandleFunc("/lookup", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		w.Write([]byte(bathRows))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := nominatim.New(nominatim.Config{BaseURL: srv.URL, UserAgent: "geofield-test"})
	if err != nil {
		t.Fatal(err)
	}

	preds, err := p.Predict(context.Background(), "bat")
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 1 || preds[0].PlaceID != "R42" {
		t.Fatalf("preds=%+v", preds)
	}
	terms := preds[0].Terms
	if len(terms) != 3 || terms[0].Value != "Bath" || terms[1].Offset != 6 {
		t.Fatalf("terms=%+v", terms)
	}
	// "bat" prefixes "Bath" and "Bath and North East Somerset".
	if len(preds[0].Matches) != 2 {
		t.Fatalf("matches=%+v", preds[0].Matches)
	}

	place, err := p.Resolve(context.Background(), "R42")
	if err != nil {
		t.Fatal(err)
	}
	if place.Location != (orb.Point{-2.36, 51.38}) {
		t.Fatalf("location=%v", place.Location)
	}
	if place.Viewport == nil || place.Viewport.Min != (orb.Point{-2.41, 51.35}) {
		t.Fatalf("viewport=%v", place.Viewport)
	}
	if lookups.Load() != 0 {
		t.Fatal("cached place triggered a lookup")
	}

	if _, err := p.Resolve(context.Background(), "R42-uncached"); err != nil {
		t.Fatal(err)
	}
	if lookups.Load() != 1 {
		t.Fatalf("lookups=%d, want 1", lookups.Load())
	}
}

func TestNonOKStatusIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := nominatim.New(nominatim.Config{BaseURL: srv.URL, UserAgent: "geofield-test"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Predict(context.Background(), "bath")
	var se *search.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *search.ServiceError", err)
	}
	if se.Status != "429 Too Many Requests" {
		t.Fatalf("status=%q", se.Status)
	}
}

func TestUserAgentRequired(t *testing.T) {
	if _, err := nominatim.New(nominatim.Config{}); err == nil {
		t.Fatal("expected error without user agent")
	}
}

func TestPredictCountsCharacters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"osm_type":"node","osm_id":7,"lat":"47.37","lon":"8.54","display_name":"Zürich, Zürich, Schweiz"}]`))
	}))
	defer srv.Close()

	p, err := nominatim.New(nominatim.Config{BaseURL: srv.URL, UserAgent: "geofield-test"})
	if err != nil {
		t.Fatal(err)
	}
	preds, err := p.Predict(context.Background(), "zü")
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 1 {
		t.Fatalf("preds=%+v", preds)
	}
	terms := preds[0].Terms
	if len(terms) != 3 || terms[1].Offset != 8 || terms[2].Offset != 16 {
		t.Fatalf("terms=%+v, want character offsets 0, 8, 16", terms)
	}
	if len(preds[0].Matches) != 2 || preds[0].Matches[0].Length != 2 {
		t.Fatalf("matches=%+v", preds[0].Matches)
	}

	item := search.Layout(0, preds[0])
	if len(item.Title) != 2 || item.Title[0].Text != "Zü" || item.Title[1].Text != "rich" {
		t.Fatalf("title=%+v", item.Title)
	}
}
