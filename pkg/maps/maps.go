// Package maps wraps the Google Routes and Geocoding APIs.
package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRoutesURL  = "https://routes.googleapis.com/directions/v2:computeRoutes"
	defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

	// Only the fields we read; the field mask keeps Routes API billing to
	// exactly what the agent uses.
	routesFieldMask = "routes.legs.distanceMeters,routes.legs.duration,routes.legs.endLocation,routes.polyline.encodedPolyline"
)

// Route is a computed driving route. RouteError is set when the destination
// resolved but no drivable route exists.
type Route struct {
	FormattedAddress string
	DistanceMeters   int
	DistanceText     string
	DurationSeconds  int
	DurationText     string
	Polyline         string
	EndLat           float64
	EndLng           float64
	RouteError       string
}

type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	routesURL  string
	geocodeURL string
}

type Option func(*Client)

// WithBaseURLs overrides the API endpoints, used by tests.
func WithBaseURLs(routesURL, geocodeURL string) Option {
	return func(c *Client) {
		c.routesURL = routesURL
		c.geocodeURL = geocodeURL
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		routesURL:  defaultRoutesURL,
		geocodeURL: defaultGeocodeURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type routesRequest struct {
	Origin struct {
		Location struct {
			LatLng struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"latLng"`
		} `json:"location"`
	} `json:"origin"`
	Destination struct {
		Address string `json:"address"`
	} `json:"destination"`
	TravelMode        string `json:"travelMode"`
	RoutingPreference string `json:"routingPreference"`
	Units             string `json:"units"`
}

type routesResponse struct {
	Routes []struct {
		Legs []struct {
			DistanceMeters int    `json:"distanceMeters"`
			Duration       string `json:"duration"`
			EndLocation    struct {
				LatLng struct {
					Latitude  float64 `json:"latitude"`
					Longitude float64 `json:"longitude"`
				} `json:"latLng"`
			} `json:"endLocation"`
		} `json:"legs"`
		Polyline struct {
			EncodedPolyline string `json:"encodedPolyline"`
		} `json:"polyline"`
	} `json:"routes"`
}

// ComputeRoute returns the traffic-aware driving route from the origin
// coordinates to a free-form destination address. A nil Route with nil
// error means the destination could not be resolved.
func (c *Client) ComputeRoute(ctx context.Context, originLat, originLng float64, destination string) (*Route, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("maps api key is not configured")
	}

	var reqBody routesRequest
	reqBody.Origin.Location.LatLng.Latitude = originLat
	reqBody.Origin.Location.LatLng.Longitude = originLng
	reqBody.Destination.Address = destination
	reqBody.TravelMode = "DRIVE"
	reqBody.RoutingPreference = "TRAFFIC_AWARE"
	reqBody.Units = "METRIC"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal routes request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.routesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build routes request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routes api request: %w", err)
	}
	defer resp.Body.Close()

	var decoded routesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode routes response: %w", err)
	}

	if len(decoded.Routes) == 0 {
		c.logger.Warn("routes api returned no routes", "destination", destination)
		return nil, nil
	}

	route := decoded.Routes[0]
	if len(route.Legs) == 0 {
		return &Route{FormattedAddress: destination, RouteError: "no drivable route was found"}, nil
	}

	leg := route.Legs[0]
	durationSeconds, err := parseDurationSeconds(leg.Duration)
	if err != nil {
		return &Route{FormattedAddress: destination, RouteError: "the route duration could not be determined"}, nil
	}

	return &Route{
		FormattedAddress: destination,
		DistanceMeters:   leg.DistanceMeters,
		DistanceText:     fmt.Sprintf("%.1f km", float64(leg.DistanceMeters)/1000),
		DurationSeconds:  durationSeconds,
		DurationText:     formatDuration(durationSeconds),
		Polyline:         route.Polyline.EncodedPolyline,
		EndLat:           leg.EndLocation.LatLng.Latitude,
		EndLng:           leg.EndLocation.LatLng.Longitude,
	}, nil
}

type geocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// ReverseGeocode resolves coordinates to a human-readable address. An empty
// string with nil error means no result.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("maps api key is not configured")
	}

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%v,%v", lat, lng))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Results) == 0 {
		c.logger.Warn("no reverse geocode result", "lat", lat, "lng", lng)
		return "", nil
	}
	return decoded.Results[0].FormattedAddress, nil
}

// parseDurationSeconds parses the Routes API duration form "123s".
func parseDurationSeconds(raw string) (int, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "s")
	if trimmed == "" {
		return 0, fmt.Errorf("empty duration")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return n, nil
}

// formatDuration renders seconds the way they are spoken: "1 hr 23 mins".
func formatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%d hr %d mins", hours, minutes)
	}
	return fmt.Sprintf("%d mins", minutes)
}
