package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Stub routes return fixed placeholder payloads until the corresponding
// subsystems land. The payloads are contractual; clients already render them.
func (s *Server) registerStubRoutes() {
	s.app.POST("/api/rag/sources/upload", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"source_id": "src_demo_1", "status": "UPLOADED"},
		})
	})

	s.app.POST("/api/rag/sources/index", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"source_id": "src_demo_1", "status": "INDEXING"},
		})
	})

	s.app.GET("/api/rag/search", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"query": c.QueryParam("q"), "results": []any{}},
		})
	})

	s.app.POST("/api/stt/transcribe", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"transcript": "This is a stubbed transcript."},
		})
	})

	s.app.POST("/api/tts/synthesize", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"audio_url": "/static/tts/demo.wav"},
		})
	})

	s.app.POST("/api/automation/commands/run", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"status": "QUEUED", "job_id": "job_demo_1"},
		})
	})

	s.app.GET("/api/automation/experts", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"id": "legal-advisor", "name": "Legal Advisor"},
				{"id": "code-reviewer", "name": "Code Reviewer"},
			},
		})
	})

	s.app.POST("/api/automation/scratchpad/fork", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"scratchpad_id": "sp_demo_1", "status": "CREATED"},
		})
	})
}
