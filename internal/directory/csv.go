// Package directory provides a CSV-backed recipient directory for local
// development, standing in for the Postgres repository. The file is loaded
// once at construction; cooldown markers are written back through an atomic
// rename so a crash mid-write never truncates the list.
package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"aurorawatch/internal/types"
)

// csvHeader is the expected column layout of the recipient file.
var csvHeader = []string{"email", "name", "location_name", "last_realtime_notified_at", "last_forecast_notified_day"}

// CSVDirectory implements types.RecipientDirectory on top of a local CSV
// file. RowHandle is the recipient's email address, which the file treats as
// unique.
type CSVDirectory struct {
	path string

	mu         sync.Mutex
	recipients []types.Recipient
}

// NewCSVDirectory loads the recipient file at path. A missing or malformed
// file is a startup error, not a per-cycle one.
func NewCSVDirectory(path string) (*CSVDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to open recipient file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to parse recipient file", err)
	}
	if len(records) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "recipient file is empty", nil)
	}
	if !equalFold(records[0], csvHeader) {
		return nil, types.NewAppError(types.ErrCodeUpstreamDirectory,
			fmt.Sprintf("recipient file header must be %q", strings.Join(csvHeader, ",")), nil)
	}

	recipients := make([]types.Recipient, 0, len(records)-1)
	for i, record := range records[1:] {
		rec, err := parseRecord(record)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamDirectory,
				fmt.Sprintf("recipient file line %d is malformed", i+2), err)
		}
		recipients = append(recipients, rec)
	}

	return &CSVDirectory{path: path, recipients: recipients}, nil
}

// ListByLocation returns the recipients subscribed to the given location.
func (d *CSVDirectory) ListByLocation(_ context.Context, locationName string) ([]types.Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result []types.Recipient
	for _, rec := range d.recipients {
		if rec.LocationName == locationName {
			result = append(result, rec)
		}
	}
	return result, nil
}

// MarkRealtimeNotified records the realtime cooldown marker and flushes the
// file.
func (d *CSVDirectory) MarkRealtimeNotified(_ context.Context, rowHandle string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.recipients {
		if d.recipients[i].RowHandle == rowHandle {
			t := at
			d.recipients[i].LastRealtimeNotifiedAt = &t
			return d.flushLocked()
		}
	}
	return types.NewAppError(types.ErrCodeUpstreamDirectory,
		fmt.Sprintf("recipient %q not found for realtime marker", rowHandle), nil)
}

// MarkForecastNotified records the forecast day marker and flushes the file.
func (d *CSVDirectory) MarkForecastNotified(_ context.Context, rowHandle string, day string) error {
	if _, err := time.Parse(types.DayFormat, day); err != nil {
		return types.NewAppError(types.ErrCodeValidationMessage, "malformed forecast marker day", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.recipients {
		if d.recipients[i].RowHandle == rowHandle {
			d.recipients[i].LastForecastNotifiedDay = day
			return d.flushLocked()
		}
	}
	return types.NewAppError(types.ErrCodeUpstreamDirectory,
		fmt.Sprintf("recipient %q not found for forecast marker", rowHandle), nil)
}

// flushLocked rewrites the recipient file. Callers must hold d.mu.
func (d *CSVDirectory) flushLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".recipients-*.csv")
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to create temp recipient file", err)
	}
	tmpName := tmp.Name()

	writer := csv.NewWriter(tmp)
	rows := [][]string{csvHeader}
	for _, rec := range d.recipients {
		realtimeAt := ""
		if rec.LastRealtimeNotifiedAt != nil {
			realtimeAt = rec.LastRealtimeNotifiedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{rec.Email, rec.Name, rec.LocationName, realtimeAt, rec.LastForecastNotifiedDay})
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to write recipient file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to close recipient file", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to replace recipient file", err)
	}
	return nil
}

func parseRecord(record []string) (types.Recipient, error) {
	if len(record) != len(csvHeader) {
		return types.Recipient{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}

	email := strings.TrimSpace(record[0])
	if email == "" {
		return types.Recipient{}, fmt.Errorf("email column is empty")
	}

	rec := types.Recipient{
		Email:        email,
		Name:         strings.TrimSpace(record[1]),
		LocationName: strings.TrimSpace(record[2]),
		RowHandle:    email,
	}

	if v := strings.TrimSpace(record[3]); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return types.Recipient{}, fmt.Errorf("malformed last_realtime_notified_at %q: %w", v, err)
		}
		rec.LastRealtimeNotifiedAt = &at
	}
	if v := strings.TrimSpace(record[4]); v != "" {
		if _, err := time.Parse(types.DayFormat, v); err != nil {
			return types.Recipient{}, fmt.Errorf("malformed last_forecast_notified_day %q: %w", v, err)
		}
		rec.LastForecastNotifiedDay = v
	}
	return rec, nil
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), b[i]) {
			return false
		}
	}
	return true
}

var _ types.RecipientDirectory = (*CSVDirectory)(nil)
