package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trustline/portal-backend/internal/admin/dashboard"
	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/pkg/storage"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
)

var contentTypes = map[Format]string{
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
	FormatCSV:  "text/csv",
}

func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := contentTypes[f]; !ok {
		return "", apperr.Validation("format", "must be one of xlsx pdf csv")
	}
	return f, nil
}

// SummarySource is satisfied by *dashboard.Aggregator.
type SummarySource interface {
	Summary(ctx context.Context, now time.Time) (*dashboard.Summary, error)
	Compute(ctx context.Context, now time.Time) (*dashboard.Summary, error)
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Service struct {
	source SummarySource
	logger *zap.Logger
}

func NewService(source SummarySource, logger *zap.Logger) *Service {
	return &Service{source: source, logger: logger}
}

// Export renders the current dashboard summary.
func (s *Service) Export(ctx context.Context, format Format, now time.Time) (*File, error) {
	summary, err := s.source.Summary(ctx, now)
	if err != nil {
		return nil, err
	}
	return Render(summary, format, now)
}

// Render encodes a summary in the requested format.
func Render(summary *dashboard.Summary, format Format, now time.Time) (*File, error) {
	contentType, ok := contentTypes[format]
	if !ok {
		return nil, apperr.Validation("format", "must be one of xlsx pdf csv")
	}

	tables := Tables(summary)
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatXLSX:
		err = WriteExcel(&buf, tables)
	case FormatPDF:
		err = WritePDF(&buf, "Trustline admin dashboard", now, tables)
	case FormatCSV:
		err = WriteCSV(&buf, tables)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", format, err)
	}

	return &File{
		Name:        fmt.Sprintf("dashboard-%s.%s", now.UTC().Format("2006-01-02"), format),
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}

// Archive stores the month-end snapshot of the month before now in the
// reports bucket and returns its key. Figures are computed as of the last
// instant of that month.
func (s *Service) Archive(ctx context.Context, store storage.S3Client, bucket string, now time.Time) (string, error) {
	monthStart := dashboard.WindowsAt(now).MonthStart
	asOf := monthStart.Add(-time.Nanosecond)

	summary, err := s.source.Compute(ctx, asOf)
	if err != nil {
		return "", err
	}
	file, err := Render(summary, FormatXLSX, asOf)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("dashboard/%s.xlsx", asOf.Format("2006-01"))
	if err := store.Upload(ctx, bucket, key, file.ContentType, bytes.NewReader(file.Data)); err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	s.logger.Info("Monthly dashboard archived", zap.String("bucket", bucket), zap.String("key", key))
	return key, nil
}
