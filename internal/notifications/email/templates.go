package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"aurorawatch/internal/types"
)

// RenderedEmail is a fully rendered message ready for the provider.
// BodyHTML is empty for plain-text alerts.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// realtimeHTMLTemplate renders the realtime alert. Rendering happens
// client-side so the provider only ever sees finished content.
var realtimeHTMLTemplate = template.Must(template.New("realtime").Parse(`<html><body style="font-family:Arial,sans-serif;color:#333;">
  <h2>🌌 Aurora Alert for {{.LocationName}}</h2>
  <p>Hello {{.RecipientName}},</p>
  <p>
    Heads up! Based on current space weather, there's a <strong>{{.Score}}%</strong> chance of seeing the aurora tonight in <strong>{{.LocationName}}</strong>.
  </p>
  <ul>
    <li><strong>Kp index:</strong> {{.Kp}}</li>
    <li><strong>Local Time:</strong> {{.Time}}</li>
    <li><strong>Cloud Cover:</strong> {{.CloudPct}}%</li>
    <li><strong>Moon Illumination:</strong> {{.MoonPct}}%</li>
    <li><strong>Sunrise:</strong> {{.Sunrise}}</li>
    <li><strong>Sunset:</strong> {{.Sunset}}</li>
  </ul>
  <p>🔗 <a href="{{.ForecastMapURL}}" target="_blank">View Forecast Map</a></p>
  <hr>
  <p style="font-size:0.85em; color:#666;">
    You're receiving this alert because you subscribed to updates for {{.LocationName}}.<br>
    To stop receiving these, simply reply with "unsubscribe".
  </p>
</body></html>`))

// forecastMapURL is the public NOAA 30-minute forecast map linked from
// realtime alerts.
const forecastMapURL = "https://www.swpc.noaa.gov/products/aurora-30-minute-forecast"

type realtimeTemplateData struct {
	LocationName   string
	RecipientName  string
	Score          int
	Kp             string
	Time           string
	CloudPct       string
	MoonPct        string
	Sunrise        string
	Sunset         string
	ForecastMapURL string
}

// RenderRealtime produces the HTML-plus-text realtime alert email.
func RenderRealtime(loc types.Location, rec types.Recipient, ev *types.EvaluationResult) (RenderedEmail, error) {
	if ev == nil {
		return RenderedEmail{}, types.NewAppError(types.ErrCodeValidationMessage, "realtime alert has no evaluation payload", nil)
	}

	d := ev.Details
	data := realtimeTemplateData{
		LocationName:   loc.Name,
		RecipientName:  recipientName(rec),
		Score:          ev.Score,
		Kp:             formatFloat(d.Kp),
		Time:           d.Time.Format(time.RFC3339),
		CloudPct:       formatFloat(d.CloudPct),
		MoonPct:        formatFloat(d.MoonPct),
		Sunrise:        d.Sunrise.Format(time.RFC3339),
		Sunset:         d.Sunset.Format(time.RFC3339),
		ForecastMapURL: forecastMapURL,
	}

	var html bytes.Buffer
	if err := realtimeHTMLTemplate.Execute(&html, data); err != nil {
		return RenderedEmail{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render realtime alert", err)
	}

	text := fmt.Sprintf(`Hello %s,

Aurora Alert for %s:
- Kp index: %s
- Local time: %s
- Cloud cover: %s%%
- Moon: %s%% illuminated
- Sunrise: %s
- Sunset: %s

View forecast map: %s

You're receiving this alert because you're subscribed to aurora updates for %s.
Reply with "unsubscribe" to opt out.`,
		data.RecipientName, loc.Name, data.Kp, data.Time, data.CloudPct,
		data.MoonPct, data.Sunrise, data.Sunset, forecastMapURL, loc.Name)

	return RenderedEmail{
		Subject:  fmt.Sprintf("🌌 Aurora Alert for %s – %d%% Chance Tonight", loc.Name, ev.Score),
		BodyHTML: html.String(),
		BodyText: text,
	}, nil
}

// RenderForecast produces the plain-text forecast alert email.
func RenderForecast(loc types.Location, rec types.Recipient, fc *types.ForecastDetails) (RenderedEmail, error) {
	if fc == nil {
		return RenderedEmail{}, types.NewAppError(types.ErrCodeValidationMessage, "forecast alert has no forecast payload", nil)
	}

	name := recipientName(rec)
	eventTime := fc.EventTime.Format(time.RFC3339)

	text := fmt.Sprintf(`Hello %s,

Aurora activity is expected soon in %s:
- Kp Index: %s
- Peak Time: %s
- Your alert threshold: %d

You're receiving this alert because you're subscribed to updates for %s.
Reply with "unsubscribe" to stop receiving future alerts.`,
		name, loc.Name, formatFloat(fc.Kp), eventTime, fc.KpMin, loc.Name)

	return RenderedEmail{
		Subject:  fmt.Sprintf("🔮 Aurora Forecast for %s – Kp %s at %s", loc.Name, formatFloat(fc.Kp), eventTime),
		BodyText: text,
	}, nil
}

// recipientName falls back to a friendly greeting when the recipient has no
// recorded name.
func recipientName(rec types.Recipient) string {
	if name := strings.TrimSpace(rec.Name); name != "" {
		return name
	}
	return "there"
}

// formatFloat renders measurements without trailing zeros (6.33, not 6.330000).
func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
