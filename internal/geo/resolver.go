package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/engine"
)

// Location is the best-effort geolocation of an IP.
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolver maps an IP to a location. Implementations may be slow or
// unavailable; callers bound lookups with a context deadline and treat
// failures as missing enrichment, never as ingestion errors.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// HTTPResolver queries an ip-api style JSON endpoint
// (GET <baseURL>/<ip> -> {"status":"success","country":...,"city":...}).
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver against baseURL. The timeout caps the
// whole lookup even when the caller's context allows more.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Resolve looks up ip. Private and loopback addresses are never sent out;
// they resolve to an empty location.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, engine.NewValidationError("ip", "not a valid IP literal")
	}
	if IsPrivate(addr) {
		return &Location{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", r.baseURL, ip), nil)
	if err != nil {
		return nil, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrGeoUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", engine.ErrGeoUnavailable, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", engine.ErrGeoUnavailable, err)
	}
	if body.Status != "success" {
		return &Location{}, nil
	}

	return &Location{
		Country:   body.CountryCode,
		City:      body.City,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}

// IsPrivate reports whether addr should be excluded from geo lookups and
// automatic bans.
func IsPrivate(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified()
}
