// Package gate implements the per-recipient cooldown policies. Both filters
// are pure: they read marker fields on the recipient records and return the
// eligible subset without sending anything or writing state back. The caller
// persists the new marker for every recipient actually notified, and only
// after a successful send.
//
// Per recipient and cooldown kind the lifecycle cycles indefinitely:
// never-notified -> eligible -> (notified) -> cooling down -> (time elapsed)
// -> eligible.
package gate

import (
	"time"

	"aurorawatch/internal/types"
)

// RealtimeCooldown is the minimum elapsed time between two realtime alerts
// to the same recipient.
const RealtimeCooldown = 4 * time.Hour

// EligibleRealtime returns the recipients eligible for a realtime alert:
// those never notified, or whose last realtime notification is at least
// RealtimeCooldown before ref. ref is the evaluation's own observation
// timestamp rather than wall-clock call time, so the decision is
// reproducible from recorded state.
func EligibleRealtime(recipients []types.Recipient, ref time.Time) []types.Recipient {
	var eligible []types.Recipient
	for _, r := range recipients {
		if r.LastRealtimeNotifiedAt == nil || ref.Sub(*r.LastRealtimeNotifiedAt) >= RealtimeCooldown {
			eligible = append(eligible, r)
		}
	}
	return eligible
}

// EligibleForecast returns the recipients eligible for a forecast alert: at
// most one per calendar day. day is the current civil date in the location's
// timezone, formatted as types.DayFormat; an unset or differing marker means
// eligible.
func EligibleForecast(recipients []types.Recipient, day string) []types.Recipient {
	var eligible []types.Recipient
	for _, r := range recipients {
		if r.LastForecastNotifiedDay != day {
			eligible = append(eligible, r)
		}
	}
	return eligible
}
