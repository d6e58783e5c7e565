package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/verityair/concierge/internal/repository"
	"github.com/verityair/concierge/internal/storage"
)

// UsageStore is the subset of repository queries the report exporter needs.
type UsageStore interface {
	ListUsageSince(ctx context.Context, since time.Time) ([]repository.UserUsage, error)
}

// ReportExporter writes periodic per-user usage summaries as CSV files to
// object storage for the finance and analytics teams.
type ReportExporter struct {
	store   UsageStore
	objects storage.Storage
	logger  *slog.Logger
}

// NewReportExporter creates a new ReportExporter.
func NewReportExporter(store UsageStore, objects storage.Storage, logger *slog.Logger) *ReportExporter {
	return &ReportExporter{
		store:   store,
		objects: objects,
		logger:  logger,
	}
}

// Export aggregates usage since the given time and uploads a CSV keyed by the
// report day. Re-running an export for the same day overwrites the previous
// file, so a retried run cannot leave duplicates.
func (e *ReportExporter) Export(ctx context.Context, since, day time.Time) (string, error) {
	usage, err := e.store.ListUsageSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("aggregate usage: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"user_id", "sessions", "messages"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, u := range usage {
		record := []string{
			u.UserID.String(),
			strconv.FormatInt(u.SessionCount, 10),
			strconv.FormatInt(u.MessageCount, 10),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	key := storage.UsageReportKey(day)
	err = e.objects.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: "text/csv",
		Overwrite:   true,
	})
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}

	e.logger.Debug("usage report uploaded", "key", key, "users", len(usage))
	return key, nil
}
