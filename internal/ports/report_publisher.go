package ports

import (
	"context"

	"dsacoach/internal/domain/evaluation"
)

// ReportPublisher publishes evaluation reports to an external system.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report evaluation.Report) error
	Close() error
}
