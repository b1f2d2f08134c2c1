// Package calendar adapts external calendar providers to the engine's
// busy-interval feed. Only the feed result matters here; OAuth token
// lifecycle belongs to the sync component that hands us a token source.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/bookline/bookline/internal/interval"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleBusySource reads busy intervals from the Google Calendar freebusy
// endpoint. Callers bound it with a context timeout; on any failure the
// availability service degrades to manual blocks.
type GoogleBusySource struct {
	tokens     TokenStore
	calendarID string
}

// TokenStore yields an authorized token source per business. Businesses
// without a connected calendar return (nil, nil).
type TokenStore interface {
	TokenSource(ctx context.Context, businessID string) (oauth2.TokenSource, error)
}

func NewGoogleBusySource(tokens TokenStore, calendarID string) *GoogleBusySource {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleBusySource{tokens: tokens, calendarID: calendarID}
}

func (g *GoogleBusySource) BusyIntervals(ctx context.Context, businessID string, from, to time.Time) ([]interval.Span, error) {
	ts, err := g.tokens.TokenSource(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("token source: %w", err)
	}
	if ts == nil {
		return nil, nil // no calendar connected
	}

	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}

	var out []interval.Span
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end: %w", err)
		}
		if !start.Before(end) {
			continue
		}
		out = append(out, interval.Span{Start: start, End: end})
	}
	return out, nil
}
