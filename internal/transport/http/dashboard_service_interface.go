package http

import (
	"context"

	"csvpulse/internal/charts"
	"csvpulse/internal/dataprocessing"
	"csvpulse/internal/exporter"
	"csvpulse/internal/services"
	"csvpulse/pkg/contracts/domain"
)

// DashboardServiceInterface defines the interface for dashboard service operations
type DashboardServiceInterface interface {
	Profiles() []string
	CreateSession(ctx context.Context, req services.UploadRequest) (*domain.SessionInfo, error)
	GetSession(ctx context.Context, id string) (*domain.SessionInfo, error)
	ReplaceTable(ctx context.Context, id string, req services.UploadRequest) (*domain.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	View(ctx context.Context, id string, c domain.Criteria) (*domain.View, error)
	Export(ctx context.Context, id string, c domain.Criteria, opts exporter.Options) (*services.Blob, error)
	Chart(ctx context.Context, id, section string, c domain.Criteria, size charts.Size) (*services.Blob, error)
	Describe(ctx context.Context, req services.UploadRequest) (*domain.Description, error)
	Run(ctx context.Context, req services.UploadRequest, c domain.Criteria) (*dataprocessing.Result, error)
}
