// Package geocode resolves coordinates to human-readable addresses through
// the OpenStreetMap Nominatim API. Lookups are best-effort: callers fall
// back to raw coordinates when the service is unreachable, and results are
// cached so repeated stamps from the same spot stay within the Nominatim
// usage policy.
package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultEndpoint  = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "toshinote/1.0"

	cacheSize = 256
)

// AddressInfo is the subset of the Nominatim reverse-geocoding response we
// care about.
type AddressInfo struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Province      string `json:"province"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Suburb        string `json:"suburb"`
		CityDistrict  string `json:"city_district"`
		Neighbourhood string `json:"neighbourhood"`
		Road          string `json:"road"`
		HouseNumber   string `json:"house_number"`
	} `json:"address"`
}

type Client struct {
	http  *resty.Client
	cache *lru.Cache[string, string]
}

type Option func(*Client)

// WithEndpoint overrides the Nominatim base URL (used by tests and
// self-hosted instances).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.http.SetBaseURL(endpoint) }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.http.SetHeader("User-Agent", ua) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithLanguage sets the Accept-Language header so results come back in the
// caller's locale.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.http.SetHeader("Accept-Language", lang) }
}

func NewClient(opts ...Option) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(DefaultEndpoint)
	// Nominatim requires an identifying User-Agent.
	httpClient.SetHeader("User-Agent", DefaultUserAgent)
	httpClient.SetTimeout(10 * time.Second)

	cache, _ := lru.New[string, string](cacheSize)

	c := &Client{http: httpClient, cache: cache}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reverse looks up the address for the given coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*AddressInfo, error) {
	var info AddressInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":         "jsonv2",
			"lat":            fmt.Sprintf("%f", lat),
			"lon":            fmt.Sprintf("%f", lon),
			"zoom":           "18",
			"addressdetails": "1",
		}).
		SetResult(&info).
		Get("/reverse")
	if err != nil {
		return nil, fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("reverse geocoding failed: %s", resp.Status())
	}
	return &info, nil
}

// DisplayLabel returns the best available label for the coordinates: a
// cached or freshly geocoded address, or the raw coordinates when the
// lookup fails. It never returns an error.
func (c *Client) DisplayLabel(ctx context.Context, lat, lon float64) string {
	key := cacheKey(lat, lon)
	if label, ok := c.cache.Get(key); ok {
		return label
	}

	info, err := c.Reverse(ctx, lat, lon)
	if err != nil {
		return FormatCoordinates(lat, lon)
	}

	label := FormatAddress(info)
	if label == "" {
		return FormatCoordinates(lat, lon)
	}
	c.cache.Add(key, label)
	return label
}

// FormatAddress composes a compact label from the structured address:
// province, then city/town/village, then the finest locality available.
// Falls back to the full display name when the parts are all empty.
func FormatAddress(info *AddressInfo) string {
	a := info.Address

	region := a.Province
	city := firstNonEmpty(a.City, a.Town, a.Village)
	local := firstNonEmpty(a.Suburb, a.CityDistrict, a.Neighbourhood)

	result := region + city + local
	if result == "" {
		return info.DisplayName
	}
	return result
}

// FormatCoordinates renders raw coordinates as a display label.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}

func cacheKey(lat, lon float64) string {
	// Round to ~1m so jittery GPS fixes share one cache slot.
	return fmt.Sprintf("%.5f:%.5f", lat, lon)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
