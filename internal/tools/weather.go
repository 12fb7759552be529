package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"zeek-gateway/internal/models"
	"zeek-gateway/internal/upstream"
)

const (
	weatherTimeout = 10 * time.Second

	geocodeURL   = "https://geocoding-api.open-meteo.com/v1/search"
	nominatimURL = "https://nominatim.openstreetmap.org/search"
	forecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// Fallback coordinates when no location is requested.
const (
	defaultLatitude  = 35.894
	defaultLongitude = -80.561
	defaultPlace     = "Mocksville, NC"
)

var weatherCodeDescriptions = map[int64]string{
	0:  "Clear",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	71: "Snow",
	80: "Rain showers",
}

// Weather resolves a place name through a primary geocoder with a secondary
// fallback, then queries the forecast service.
type Weather struct {
	client *upstream.Client
}

// NewWeather constructs the weather dispatcher.
func NewWeather(client *upstream.Client) *Weather {
	return &Weather{client: client}
}

// Current returns the current conditions for the requested location, or for
// a default place when none is given.
func (w *Weather) Current(ctx context.Context, location string) (*models.WeatherEnvelope, error) {
	lat, lon := defaultLatitude, defaultLongitude
	place := strings.TrimSpace(location)

	if place != "" {
		resolvedLat, resolvedLon, resolvedPlace, ok := w.geocode(ctx, place)
		if !ok {
			return nil, &models.APIError{
				Status:  http.StatusNotFound,
				Code:    "location_not_found",
				Message: fmt.Sprintf("Location not found: %s", place),
			}
		}
		lat, lon, place = resolvedLat, resolvedLon, resolvedPlace
	} else {
		place = defaultPlace
	}

	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%v", lat))
	query.Set("longitude", fmt.Sprintf("%v", lon))
	query.Set("current_weather", "true")
	query.Set("temperature_unit", "fahrenheit")

	resp, err := w.client.Get(ctx, weatherTimeout, forecastURL, query, nil)
	if err != nil {
		return nil, models.UpstreamError("weather", err)
	}
	if resp.Status != http.StatusOK {
		return nil, &models.APIError{
			Status:  resp.Status,
			Code:    "weather_error",
			Message: fmt.Sprintf("Weather fetch failed (%d)", resp.Status),
		}
	}

	current := gjson.GetBytes(resp.Body, "current_weather")
	desc, ok := weatherCodeDescriptions[current.Get("weathercode").Int()]
	if !ok || !current.Get("weathercode").Exists() {
		desc = "Conditions available"
	}

	message := fmt.Sprintf("Current weather in %s: %v°F, %s, wind %v mph. Time: %v.",
		place,
		current.Get("temperature").Value(),
		desc,
		current.Get("windspeed").Value(),
		current.Get("time").Value(),
	)

	currentJSON := json.RawMessage(current.Raw)
	if !current.Exists() {
		currentJSON = json.RawMessage("{}")
	}

	return &models.WeatherEnvelope{
		Message: message,
		Place:   place,
		Current: currentJSON,
	}, nil
}

// geocode tries the primary geocoder, then the public OSM service. Failures
// of either source fall through; only a total miss is reported.
func (w *Weather) geocode(ctx context.Context, place string) (lat, lon float64, resolved string, ok bool) {
	resolved = place

	query := url.Values{}
	query.Set("name", place)
	query.Set("count", "1")

	if resp, err := w.client.Get(ctx, weatherTimeout, geocodeURL, query, nil); err == nil &&
		resp.Status == http.StatusOK && resp.IsJSON() {
		if hit := gjson.GetBytes(resp.Body, "results.0"); hit.Exists() {
			latField, lonField := hit.Get("latitude"), hit.Get("longitude")
			if latField.Exists() && lonField.Exists() {
				if name, country := hit.Get("name"), hit.Get("country"); name.Exists() && country.Exists() {
					resolved = fmt.Sprintf("%s, %s", name.String(), country.String())
				}
				return latField.Float(), lonField.Float(), resolved, true
			}
		}
	}

	nomQuery := url.Values{}
	nomQuery.Set("q", place)
	nomQuery.Set("format", "json")
	nomQuery.Set("limit", "1")

	if resp, err := w.client.Get(ctx, weatherTimeout, nominatimURL, nomQuery, nil); err == nil &&
		resp.Status == http.StatusOK && resp.IsJSON() {
		if hit := gjson.GetBytes(resp.Body, "0"); hit.Exists() {
			latField, lonField := hit.Get("lat"), hit.Get("lon")
			if latField.Exists() && lonField.Exists() {
				if disp := hit.Get("display_name"); disp.Exists() {
					resolved = disp.String()
				}
				return latField.Float(), lonField.Float(), resolved, true
			}
		}
	}

	return 0, 0, "", false
}
