package mocks

import (
	"context"
	"net/http"

	"github.com/ct-protocol-manual/internal/service"
)

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamFunc func(ctx context.Context, w http.ResponseWriter, resource, format string) error
	Counts     map[string]int
	Calls      []string
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{
		Counts: map[string]int{
			service.ResourceDiseases:  0,
			service.ResourceNotices:   0,
			service.ResourceProtocols: 0,
			service.ResourceUsers:     0,
		},
	}
}

func (m *MockExportService) stream(ctx context.Context, w http.ResponseWriter, resource, format string) error {
	m.Calls = append(m.Calls, resource+"."+format)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, w, resource, format)
	}
	return nil
}

func (m *MockExportService) StreamDiseases(ctx context.Context, w http.ResponseWriter, format string) error {
	return m.stream(ctx, w, service.ResourceDiseases, format)
}

func (m *MockExportService) StreamNotices(ctx context.Context, w http.ResponseWriter, format string) error {
	return m.stream(ctx, w, service.ResourceNotices, format)
}

func (m *MockExportService) StreamProtocols(ctx context.Context, w http.ResponseWriter, format string) error {
	return m.stream(ctx, w, service.ResourceProtocols, format)
}

func (m *MockExportService) StreamUsers(ctx context.Context, w http.ResponseWriter, format string) error {
	return m.stream(ctx, w, service.ResourceUsers, format)
}

func (m *MockExportService) GetCount(ctx context.Context, resource string) (int, error) {
	return m.Counts[resource], nil
}
