package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// Geocoder turns coordinates into a human-readable address.
type Geocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (string, error)
}

// GoogleGeocoder calls the Google Maps reverse-geocoding endpoint.
type GoogleGeocoder struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewGoogleGeocoder(apiKey, baseURL string, timeout time.Duration) *GoogleGeocoder {
	return &GoogleGeocoder{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("%w: missing api key", ErrGeocode)
	}

	endpoint, err := url.Parse(g.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocode, err)
	}
	q := endpoint.Query()
	q.Set("latlng", fmt.Sprintf("%f,%f", latitude, longitude))
	q.Set("key", g.APIKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocode, err)
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: geocoder returned %d", ErrGeocode, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocode, err)
	}

	if status := gjson.GetBytes(body, "status").String(); status != "OK" {
		return "", fmt.Errorf("%w: status %q", ErrGeocode, status)
	}
	address := gjson.GetBytes(body, "results.0.formatted_address").String()
	if address == "" {
		return "", fmt.Errorf("%w: empty result", ErrGeocode)
	}
	return address, nil
}

// CoordinatesLabel is the numeric label used when geocoding is unavailable.
func CoordinatesLabel(latitude, longitude float64) string {
	return fmt.Sprintf("%.5f, %.5f", latitude, longitude)
}

// LocationLabel never fails: any geocoder error degrades to CoordinatesLabel.
func LocationLabel(ctx context.Context, geocoder Geocoder, latitude, longitude float64) string {
	if geocoder == nil {
		return CoordinatesLabel(latitude, longitude)
	}
	label, err := geocoder.Reverse(ctx, latitude, longitude)
	if err != nil || label == "" {
		log.Printf("[Geocode] falling back to coordinates: %v", err)
		return CoordinatesLabel(latitude, longitude)
	}
	return label
}
