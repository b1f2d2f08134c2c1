package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bookline/bookline/internal/model"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// MetricsService derives read-only aggregates from the request set and the
// audit trail. Everything here is informational; empty inputs produce a
// valid zero-result.
type MetricsService struct {
	requests  RequestStore
	audit     AuditStore
	offerings OfferingStore
	logger    *zap.Logger
}

func NewMetricsService(requests RequestStore, audit AuditStore, offerings OfferingStore, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		requests:  requests,
		audit:     audit,
		offerings: offerings,
		logger:    logger,
	}
}

type OfferingCount struct {
	OfferingID string `json:"offering_id"`
	Name       string `json:"name,omitempty"`
	Count      int    `json:"count"`
}

type MetricsSummary struct {
	Total    int                         `json:"total"`
	ByStatus map[model.RequestStatus]int `json:"by_status"`

	// ConversionRate is approved-or-later over total; zero when Total is zero.
	ConversionRate float64 `json:"conversion_rate"`

	// Medians are absent (nil), not zero, when no request qualifies.
	MedianFirstResponse  *time.Duration `json:"median_first_response,omitempty"`
	MedianTimeToApproval *time.Duration `json:"median_time_to_approval,omitempty"`

	OfferingPopularity []OfferingCount `json:"offering_popularity"`

	PeakHours [24]int `json:"peak_hours"` // bucketed from CreatedAt
	PeakDays  [7]int  `json:"peak_days"`  // 0 = Sunday
}

// ComputeMetrics aggregates over requests created within [from, to).
func (s *MetricsService) ComputeMetrics(ctx context.Context, businessID string, from, to time.Time) (*MetricsSummary, error) {
	requests, err := s.requests.ListByBusiness(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	summary := &MetricsSummary{
		Total:    len(requests),
		ByStatus: map[model.RequestStatus]int{},
	}

	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
		summary.ByStatus[r.Status]++
		summary.PeakHours[r.CreatedAt.Hour()]++
		summary.PeakDays[int(r.CreatedAt.Weekday())]++
	}

	if summary.Total > 0 {
		converted := summary.ByStatus[model.StatusApproved] + summary.ByStatus[model.StatusCompleted]
		summary.ConversionRate = float64(converted) / float64(summary.Total)
	}

	trails, err := s.audit.ListForMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list audit trails: %w", err)
	}

	var firstResponse, toApproval []float64
	for _, r := range requests {
		trail := trails[r.ID]
		if len(trail) == 0 {
			continue // no response yet, excluded from the median
		}
		firstResponse = append(firstResponse, trail[0].Timestamp.Sub(r.CreatedAt).Seconds())
		for _, e := range trail {
			if e.ToStatus == model.StatusApproved {
				toApproval = append(toApproval, e.Timestamp.Sub(r.CreatedAt).Seconds())
				break
			}
		}
	}
	summary.MedianFirstResponse = medianDuration(firstResponse)
	summary.MedianTimeToApproval = medianDuration(toApproval)

	summary.OfferingPopularity, err = s.popularity(ctx, businessID, requests)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (s *MetricsService) popularity(ctx context.Context, businessID string, requests []*model.BookingRequest) ([]OfferingCount, error) {
	counts := map[string]int{}
	for _, r := range requests {
		if r.OfferingID != nil {
			counts[*r.OfferingID]++
		}
	}
	if len(counts) == 0 {
		return []OfferingCount{}, nil
	}

	names := map[string]string{}
	offerings, err := s.offerings.ListOfferings(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	for _, o := range offerings {
		names[o.ID] = o.Name
	}

	out := make([]OfferingCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, OfferingCount{OfferingID: id, Name: names[id], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].OfferingID < out[j].OfferingID
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func medianDuration(seconds []float64) *time.Duration {
	if len(seconds) == 0 {
		return nil
	}
	m, err := stats.Median(seconds)
	if err != nil {
		return nil
	}
	d := time.Duration(m * float64(time.Second))
	return &d
}
