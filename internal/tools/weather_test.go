package tools

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeek-gateway/internal/models"
	"zeek-gateway/internal/upstream"
)

func newWeather(t *testing.T) *Weather {
	t.Helper()

	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)
	t.Cleanup(gock.Off)

	return NewWeather(upstream.NewClientWithHTTP(httpClient))
}

func mockForecast() {
	gock.New("https://api.open-meteo.com").
		Get("/v1/forecast").
		MatchParam("current_weather", "true").
		MatchParam("temperature_unit", "fahrenheit").
		Reply(http.StatusOK).
		JSON(map[string]any{
			"current_weather": map[string]any{
				"temperature": 71.5,
				"windspeed":   4.3,
				"weathercode": 2,
				"time":        "2026-08-29T12:00",
			},
		})
}

func TestWeatherPrimaryGeocoder(t *testing.T) {
	weather := newWeather(t)

	gock.New("https://geocoding-api.open-meteo.com").
		Get("/v1/search").
		MatchParam("name", "Paris").
		Reply(http.StatusOK).
		JSON(map[string]any{
			"results": []map[string]any{
				{"latitude": 48.85, "longitude": 2.35, "name": "Paris", "country": "France"},
			},
		})
	mockForecast()

	report, err := weather.Current(context.Background(), "Paris")
	require.NoError(t, err)

	assert.Equal(t, "Paris, France", report.Place)
	assert.Contains(t, report.Message, "Current weather in Paris, France")
	assert.Contains(t, report.Message, "71.5°F")
	assert.Contains(t, report.Message, "Partly cloudy")
}

func TestWeatherFallsBackToSecondaryGeocoder(t *testing.T) {
	weather := newWeather(t)

	gock.New("https://geocoding-api.open-meteo.com").
		Get("/v1/search").
		Reply(http.StatusOK).
		JSON(map[string]any{"results": []any{}})

	gock.New("https://nominatim.openstreetmap.org").
		Get("/search").
		MatchParam("q", "Springfield").
		MatchParam("format", "json").
		Reply(http.StatusOK).
		JSON([]map[string]any{
			{"lat": "39.78", "lon": "-89.65", "display_name": "Springfield, Illinois, USA"},
		})
	mockForecast()

	report, err := weather.Current(context.Background(), "Springfield")
	require.NoError(t, err)
	assert.Equal(t, "Springfield, Illinois, USA", report.Place)
}

func TestWeatherLocationNotFound(t *testing.T) {
	weather := newWeather(t)

	gock.New("https://geocoding-api.open-meteo.com").
		Get("/v1/search").
		Reply(http.StatusOK).
		JSON(map[string]any{"results": []any{}})

	gock.New("https://nominatim.openstreetmap.org").
		Get("/search").
		Reply(http.StatusOK).
		JSON([]any{})

	_, err := weather.Current(context.Background(), "Nowhereville")

	var apiErr *models.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "location_not_found", apiErr.Code)
}

func TestWeatherDefaultsWithoutLocation(t *testing.T) {
	weather := newWeather(t)
	mockForecast()

	report, err := weather.Current(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, defaultPlace, report.Place)
	assert.False(t, gock.HasUnmatchedRequest(), "no geocoder may be consulted without a location")
}

func TestWeatherForecastTransportFailure(t *testing.T) {
	weather := newWeather(t)

	gock.New("https://api.open-meteo.com").
		Get("/v1/forecast").
		ReplyError(errors.New("dns failure"))

	_, err := weather.Current(context.Background(), "")

	var apiErr *models.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "weather_upstream", apiErr.Code)
}
