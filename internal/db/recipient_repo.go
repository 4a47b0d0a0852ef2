package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"aurorawatch/internal/types"
)

// RecipientRepository provides data access for the recipients table. It
// implements types.RecipientDirectory for non-local environments.
//
// The cooldown markers live on the recipient row itself:
// last_realtime_notified_at holds the instant of the last realtime alert,
// last_forecast_notified_day the calendar day of the last forecast alert.
// Both are written only after a successful send.
type RecipientRepository struct {
	db DBTX
}

// NewRecipientRepository creates a RecipientRepository backed by the given
// database connection (pool or transaction).
func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// ListByLocation returns all subscribed recipients for a location, with
// their cooldown markers. Unsubscribed rows are excluded at the query level.
func (r *RecipientRepository) ListByLocation(ctx context.Context, locationName string) ([]types.Recipient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, email, name, location_name,
		        last_realtime_notified_at,
		        last_forecast_notified_day
		 FROM recipients
		 WHERE location_name = $1 AND unsubscribed_at IS NULL
		 ORDER BY email`,
		locationName,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to list recipients", err)
	}
	defer rows.Close()

	var recipients []types.Recipient
	for rows.Next() {
		var (
			rec         types.Recipient
			realtimeAt  *time.Time
			forecastDay *time.Time
		)
		if err := rows.Scan(&rec.RowHandle, &rec.Email, &rec.Name, &rec.LocationName, &realtimeAt, &forecastDay); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to scan recipient row", err)
		}
		rec.LastRealtimeNotifiedAt = realtimeAt
		if forecastDay != nil {
			rec.LastForecastNotifiedDay = forecastDay.Format(types.DayFormat)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to iterate recipient rows", err)
	}
	return recipients, nil
}

// MarkRealtimeNotified records the instant of a delivered realtime alert.
// The marker only moves forward so that out-of-order worker retries cannot
// shrink the cooldown window.
func (r *RecipientRepository) MarkRealtimeNotified(ctx context.Context, rowHandle string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recipients SET
			last_realtime_notified_at = GREATEST(COALESCE(last_realtime_notified_at, $1), $1),
			updated_at = NOW()
		 WHERE id = $2`,
		at,
		rowHandle,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to mark realtime notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "recipient not found for realtime marker", pgx.ErrNoRows)
	}
	return nil
}

// MarkForecastNotified records the calendar day of a delivered forecast alert.
func (r *RecipientRepository) MarkForecastNotified(ctx context.Context, rowHandle string, day string) error {
	parsed, err := time.Parse(types.DayFormat, day)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationMessage, "malformed forecast marker day", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE recipients SET
			last_forecast_notified_day = $1,
			updated_at = NOW()
		 WHERE id = $2`,
		parsed,
		rowHandle,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "failed to mark forecast notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeUpstreamDirectory, "recipient not found for forecast marker", pgx.ErrNoRows)
	}
	return nil
}

var _ types.RecipientDirectory = (*RecipientRepository)(nil)
