package api

import (
	"net/http"

	"github.com/ct-protocol-manual/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamExport handles GET /admin/export?resource=...&format=...
// Streams the export directly to the response
func (h *ExportHandler) StreamExport(c *gin.Context) {
	ctx := c.Request.Context()

	resource := c.Query("resource")
	if resource == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource parameter is required (diseases, notices, protocols, users)"})
		return
	}

	format := c.Query("format")
	if format == "" {
		format = "ndjson" // Default to NDJSON for streaming
	}
	if format != "ndjson" && format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: ndjson, json, csv"})
		return
	}

	// CSV only supported for users
	if format == "csv" && resource != service.ResourceUsers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV format only supported for users export"})
		return
	}

	var stream func() error
	switch resource {
	case service.ResourceDiseases:
		stream = func() error { return h.services.Export.StreamDiseases(ctx, c.Writer, format) }
	case service.ResourceNotices:
		stream = func() error { return h.services.Export.StreamNotices(ctx, c.Writer, format) }
	case service.ResourceProtocols:
		stream = func() error { return h.services.Export.StreamProtocols(ctx, c.Writer, format) }
	case service.ResourceUsers:
		stream = func() error { return h.services.Export.StreamUsers(ctx, c.Writer, format) }
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource must be one of: diseases, notices, protocols, users"})
		return
	}

	h.log.Info().
		Str("resource", resource).
		Str("format", format).
		Int64("user_id", c.GetInt64(userIDKey)).
		Msg("Starting streaming export")

	if err := stream(); err != nil {
		// Headers are already sent once streaming started
		h.log.Error().Err(err).Str("resource", resource).Msg("Export failed")
	}
}
