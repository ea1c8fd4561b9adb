package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scrypster/tether/pkg/types"
)

// newPlacesServer returns a test server that answers text search queries
// with a single deterministic place.
func newPlacesServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/textsearch/json" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") == "" {
			http.Error(w, "missing key", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"status": "OK",
			"results": [{
				"place_id": "ChIJ-starbucks-nyc",
				"formatted_address": "Starbucks, New York, NY, USA",
				"geometry": {"location": {"lat": 40.7128, "lng": -74.006}}
			}]
		}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlacesEnrichReturnsDerivedAttributes(t *testing.T) {
	srv := newPlacesServer(t)
	enricher := NewPlacesEnricher(PlacesConfig{APIKey: "test-key", BaseURL: srv.URL})

	got := enricher.Enrich(context.Background(), types.FeatureBag{
		types.AttrOrg: "Starbucks",
		types.AttrGPE: "NYC",
	})

	if got[types.AttrMapsPlaceID] != "ChIJ-starbucks-nyc" {
		t.Errorf("MAPS_PLACE_ID: got %q", got[types.AttrMapsPlaceID])
	}
	if got[types.AttrFormattedAddress] != "Starbucks, New York, NY, USA" {
		t.Errorf("FORMATTED_ADDRESS: got %q", got[types.AttrFormattedAddress])
	}
	if got[types.AttrLatLng] != "40.7128,-74.006" {
		t.Errorf("LAT_LNG: got %q", got[types.AttrLatLng])
	}
}

func TestPlacesAcceptsPersonAsName(t *testing.T) {
	srv := newPlacesServer(t)
	enricher := NewPlacesEnricher(PlacesConfig{APIKey: "test-key", BaseURL: srv.URL})

	got := enricher.Enrich(context.Background(), types.FeatureBag{
		types.AttrPerson: "John's Diner",
		types.AttrGPE:    "Seattle",
	})
	if got[types.AttrMapsPlaceID] == "" {
		t.Error("PERSON must be accepted interchangeably with ORG as the name")
	}
}

func TestPlacesEnrichEmptyWithoutRequirements(t *testing.T) {
	srv := newPlacesServer(t)
	enricher := NewPlacesEnricher(PlacesConfig{APIKey: "test-key", BaseURL: srv.URL})

	// Present key with empty value: the step's own requirement check must
	// tolerate what the registry's type-set gating let through.
	got := enricher.Enrich(context.Background(), types.FeatureBag{
		types.AttrOrg: "",
		types.AttrGPE: "Oslo",
	})
	if len(got) != 0 {
		t.Errorf("got %v, want empty enrichment", got)
	}
}

func TestPlacesDisabledWithoutCredential(t *testing.T) {
	t.Setenv("TETHER_MAPS_API_KEY", "")
	srv := newPlacesServer(t)
	enricher := NewPlacesEnricher(PlacesConfig{BaseURL: srv.URL})

	if enricher.Enabled() {
		t.Fatal("enricher must be disabled without a credential")
	}

	got := enricher.Enrich(context.Background(), types.FeatureBag{
		types.AttrOrg: "Starbucks",
		types.AttrGPE: "NYC",
	})
	if len(got) != 0 {
		t.Errorf("disabled enricher: got %v, want empty enrichment", got)
	}
}

func TestPlacesFailsSoftOnProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	enricher := NewPlacesEnricher(PlacesConfig{APIKey: "test-key", BaseURL: srv.URL})
	got := enricher.Enrich(context.Background(), types.FeatureBag{
		types.AttrOrg: "Starbucks",
		types.AttrGPE: "NYC",
	})
	if len(got) != 0 {
		t.Errorf("provider error: got %v, want empty enrichment", got)
	}
}

func TestPlacesFailsSoftOnZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	t.Cleanup(srv.Close)

	enricher := NewPlacesEnricher(PlacesConfig{APIKey: "test-key", BaseURL: srv.URL})
	got := enricher.Enrich(context.Background(), types.FeatureBag{
		types.AttrOrg: "Nowhere Cafe",
		types.AttrGPE: "Atlantis",
	})
	if len(got) != 0 {
		t.Errorf("zero results: got %v, want empty enrichment", got)
	}
}
