package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"zeek-gateway/internal/models"
)

func (s *Server) handleWeather(c echo.Context) error {
	report, err := s.weather.Current(c.Request().Context(), c.QueryParam("location"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return models.BadRequest("q is required")
	}

	max := 0
	if raw := c.QueryParam("max"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			max = parsed
		}
	}

	results, err := s.search.Run(c.Request().Context(), q, max)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// handleProviderCatalog serves the static model hub metadata.
func (s *Server) handleProviderCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"data": []map[string]string{
			{
				"id":       "openai",
				"name":     "OpenAI GPT-4",
				"provider": "OpenAI",
				"pricing":  "$0.03/1K tok (prompt), $0.06/1K tok (completion)",
			},
			{
				"id":       "anthropic",
				"name":     "Anthropic Claude 3 Opus",
				"provider": "Anthropic",
				"pricing":  "$15/1M tok (prompt), $75/1M tok (completion)",
			},
			{
				"id":       "ollama-llama2",
				"name":     "Ollama Llama 2",
				"provider": "Ollama (local)",
				"pricing":  "$0 (local)",
			},
		},
	})
}
