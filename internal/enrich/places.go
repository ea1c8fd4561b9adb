package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/scrypster/tether/pkg/types"
)

// defaultPlacesBaseURL is the Google Places text search endpoint.
const defaultPlacesBaseURL = "https://maps.googleapis.com"

// PlacesConfig configures the Places enricher.
type PlacesConfig struct {
	// APIKey is the Google Maps API key. When empty, the TETHER_MAPS_API_KEY
	// environment variable is consulted; when that is also empty, the
	// enricher is constructed disabled and always returns empty enrichment.
	// Construction never fails on a missing credential.
	APIKey string

	// BaseURL overrides the provider endpoint (used by tests).
	BaseURL string

	// RequestTimeout bounds each provider call (default: 5s).
	RequestTimeout time.Duration

	// RequestsPerSecond paces outbound calls (default: 10).
	RequestsPerSecond float64
}

// PlacesEnricher converts fuzzy name+location pairs into high-confidence
// place identifiers. It requires a name — an ORG or a PERSON attribute value
// interchangeably — plus a GPE location, and returns MAPS_PLACE_ID,
// FORMATTED_ADDRESS, and LAT_LNG.
//
// Provider failures fail soft: timeouts, non-OK statuses, and an open
// circuit breaker all produce empty enrichment so that a flaky provider
// never blocks resolution.
type PlacesEnricher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewPlacesEnricher creates a Places enricher. A missing API key degrades
// the enricher to a no-op rather than failing construction.
func NewPlacesEnricher(cfg PlacesConfig) *PlacesEnricher {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("TETHER_MAPS_API_KEY")
	}
	if apiKey == "" {
		log.Printf("enrich: no Maps API key configured; Places enrichment disabled")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultPlacesBaseURL
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PlacesEnricher",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("enrich: %s circuit %s -> %s", name, from, to)
		},
	})

	return &PlacesEnricher{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: breaker,
	}
}

// Enabled reports whether the enricher has a credential and will attempt
// provider calls.
func (p *PlacesEnricher) Enabled() bool {
	return p.apiKey != ""
}

// Enrich looks up a place for the bag's name and location. The registry has
// already checked feature presence, but the step re-checks its own
// requirements and tolerates empty values (defense in depth).
func (p *PlacesEnricher) Enrich(ctx context.Context, features types.FeatureBag) map[string]string {
	name := features[types.AttrOrg]
	if name == "" {
		name = features[types.AttrPerson]
	}
	location := features[types.AttrGPE]

	if name == "" || location == "" {
		return map[string]string{}
	}
	if !p.Enabled() {
		return map[string]string{}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		log.Printf("enrich: places rate limiter: %v", err)
		return map[string]string{}
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.search(ctx, name, location)
	})
	if err != nil {
		log.Printf("enrich: places lookup for %q in %q failed: %v", name, location, err)
		return map[string]string{}
	}

	place := result.(*placeResult)
	return map[string]string{
		types.AttrMapsPlaceID:      place.PlaceID,
		types.AttrFormattedAddress: place.FormattedAddress,
		types.AttrLatLng: fmt.Sprintf("%g,%g",
			place.Geometry.Location.Lat, place.Geometry.Location.Lng),
	}
}

// placesResponse mirrors the relevant parts of the Places text search reply.
type placesResponse struct {
	Status  string        `json:"status"`
	Results []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID          string `json:"place_id"`
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// search issues the provider call and returns the top result.
func (p *PlacesEnricher) search(ctx context.Context, name, location string) (*placeResult, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("%s in %s", name, location))
	params.Set("key", p.apiKey)
	endpoint := fmt.Sprintf("%s/maps/api/place/textsearch/json?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}

	var parsed placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return nil, fmt.Errorf("no results (status %s)", parsed.Status)
	}

	return &parsed.Results[0], nil
}
