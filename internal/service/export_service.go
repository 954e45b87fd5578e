package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/rs/zerolog"
)

// Export resources
const (
	ResourceDiseases  = "diseases"
	ResourceNotices   = "notices"
	ResourceProtocols = "protocols"
	ResourceUsers     = "users"
)

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamDiseases streams diseases as ndjson or json
func (s *exportService) StreamDiseases(ctx context.Context, w http.ResponseWriter, format string) error {
	return streamRecords(ctx, s.log, w, ResourceDiseases, format, s.repos.Disease.StreamAll)
}

// StreamNotices streams notices as ndjson or json
func (s *exportService) StreamNotices(ctx context.Context, w http.ResponseWriter, format string) error {
	return streamRecords(ctx, s.log, w, ResourceNotices, format, s.repos.Notice.StreamAll)
}

// StreamProtocols streams protocols as ndjson or json
func (s *exportService) StreamProtocols(ctx context.Context, w http.ResponseWriter, format string) error {
	return streamRecords(ctx, s.log, w, ResourceProtocols, format, s.repos.Protocol.StreamAll)
}

// StreamUsers streams users as ndjson, json or csv. Password hashes are never written.
func (s *exportService) StreamUsers(ctx context.Context, w http.ResponseWriter, format string) error {
	if format == "csv" {
		return s.streamUsersCSV(ctx, w)
	}
	return streamRecords(ctx, s.log, w, ResourceUsers, format, s.repos.User.StreamAll)
}

// GetCount returns count for a resource
func (s *exportService) GetCount(ctx context.Context, resource string) (int, error) {
	switch resource {
	case ResourceUsers:
		return s.repos.User.Count(ctx)
	case ResourceDiseases:
		return s.repos.Disease.Count(ctx)
	case ResourceNotices:
		return s.repos.Notice.Count(ctx)
	case ResourceProtocols:
		return s.repos.Protocol.Count(ctx)
	default:
		return 0, fmt.Errorf("unknown resource: %s", resource)
	}
}

// streamRecords writes every record produced by stream in the requested format.
// Headers are only set once the format is known to be supported.
func streamRecords[T any](ctx context.Context, log zerolog.Logger, w http.ResponseWriter, resource, format string, stream func(context.Context, func(T) error) error) error {
	if format != "ndjson" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	log.Info().Str("resource", resource).Str("format", format).Msg("Starting export")

	if format == "ndjson" {
		w.Header().Set("Content-Type", "application/x-ndjson")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", resource, format))

	flusher, _ := w.(http.Flusher)
	count := 0

	if format == "json" {
		w.Write([]byte("["))
	}

	err := stream(ctx, func(record T) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if format == "json" && count > 0 {
			w.Write([]byte(","))
		}
		w.Write(data)
		if format == "ndjson" {
			w.Write([]byte("\n"))
		}
		count++

		// Flush every 100 records for streaming
		if count%100 == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	if format == "json" {
		w.Write([]byte("]"))
	}

	log.Info().Str("resource", resource).Int("count", count).Msg("Export completed")
	return err
}

func (s *exportService) streamUsersCSV(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=users.csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"id", "name", "email", "created_at"})

	return s.repos.User.StreamAll(ctx, func(user *models.User) error {
		row := models.UserCSV{
			ID:        strconv.FormatInt(user.ID, 10),
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		}
		return writer.Write([]string{row.ID, row.Name, row.Email, row.CreatedAt})
	})
}
