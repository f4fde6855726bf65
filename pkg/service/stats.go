package service

import (
	"context"
	"sort"

	"linkshrink/pkg/policy"
	"linkshrink/pkg/storage"
)

// AggregationEngine computes time-bucketed visit statistics from the raw
// event log. It is read-only and trusts the caller to have confirmed the key
// exists; an unknown or eventless key simply yields empty results.
type AggregationEngine struct {
	visits storage.VisitStorage
}

func NewAggregationEngine(visits storage.VisitStorage) *AggregationEngine {
	return &AggregationEngine{visits: visits}
}

// MonthlyBucket is one month of visit counts for a link.
type MonthlyBucket struct {
	Year            int   `json:"year"`
	Month           int   `json:"month"`
	FirstTimeVisits int64 `json:"first_time_visits"`
	AllVisits       int64 `json:"all_visits"`
}

// DailyBucket is one day of visit counts for a link.
type DailyBucket struct {
	Year            int   `json:"year"`
	Month           int   `json:"month"`
	Day             int   `json:"day"`
	FirstTimeVisits int64 `json:"first_time_visits"`
	AllVisits       int64 `json:"all_visits"`
}

// BreakdownRow is one row of a categorical visit breakdown.
type BreakdownRow struct {
	Value  string `json:"value"`
	Visits int64  `json:"visits"`
}

type period struct {
	year, month, day int
}

type bucketCounts struct {
	firstTime int64
	all       int64
}

// aggregate walks the events in (time, id) order, so visits sharing a
// timestamp still resolve deterministically. The first visit from each source
// IP is counted as first-time, and counts are summed per period. Grouping by raw source
// IP conflates visitors behind NAT and double-counts a visitor whose IP
// changes; that inaccuracy is a documented property of these statistics, not
// something this stage corrects.
func (e *AggregationEngine) aggregate(ctx context.Context, key string, daily bool) (map[period]*bucketCounts, error) {
	events, err := e.visits.ByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	buckets := make(map[period]*bucketCounts)
	for _, ev := range events {
		p := period{year: ev.Time.Year(), month: int(ev.Time.Month())}
		if daily {
			p.day = ev.Time.Day()
		}
		b, ok := buckets[p]
		if !ok {
			b = &bucketCounts{}
			buckets[p] = b
		}
		b.all++
		if _, visited := seen[ev.SourceIP]; !visited {
			seen[ev.SourceIP] = struct{}{}
			b.firstTime++
		}
	}
	return buckets, nil
}

func sortedPeriods(buckets map[period]*bucketCounts) []period {
	periods := make([]period, 0, len(buckets))
	for p := range buckets {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		a, b := periods[i], periods[j]
		if a.year != b.year {
			return a.year < b.year
		}
		if a.month != b.month {
			return a.month < b.month
		}
		return a.day < b.day
	})
	return periods
}

// MonthlyStats returns per-month first-time and total visit counts, sorted
// chronologically ascending.
func (e *AggregationEngine) MonthlyStats(ctx context.Context, key string) ([]MonthlyBucket, error) {
	buckets, err := e.aggregate(ctx, key, false)
	if err != nil {
		return nil, err
	}
	out := make([]MonthlyBucket, 0, len(buckets))
	for _, p := range sortedPeriods(buckets) {
		b := buckets[p]
		out = append(out, MonthlyBucket{
			Year:            p.year,
			Month:           p.month,
			FirstTimeVisits: b.firstTime,
			AllVisits:       b.all,
		})
	}
	return out, nil
}

// DailyStats returns per-day first-time and total visit counts, sorted
// chronologically ascending.
func (e *AggregationEngine) DailyStats(ctx context.Context, key string) ([]DailyBucket, error) {
	buckets, err := e.aggregate(ctx, key, true)
	if err != nil {
		return nil, err
	}
	out := make([]DailyBucket, 0, len(buckets))
	for _, p := range sortedPeriods(buckets) {
		b := buckets[p]
		out = append(out, DailyBucket{
			Year:            p.year,
			Month:           p.month,
			Day:             p.day,
			FirstTimeVisits: b.firstTime,
			AllVisits:       b.all,
		})
	}
	return out, nil
}

// RefererStats counts visits per referring domain, most-visited first.
// Events without a referer are grouped under "direct".
func (e *AggregationEngine) RefererStats(ctx context.Context, key string) ([]BreakdownRow, error) {
	return e.breakdown(ctx, key, func(ev storage.VisitEvent) string {
		if ev.Referer == nil || *ev.Referer == "" {
			return "direct"
		}
		return policy.Domain(*ev.Referer)
	})
}

// UserAgentStats counts visits per user agent string, most-visited first.
func (e *AggregationEngine) UserAgentStats(ctx context.Context, key string) ([]BreakdownRow, error) {
	return e.breakdown(ctx, key, func(ev storage.VisitEvent) string {
		if ev.UserAgent == nil || *ev.UserAgent == "" {
			return "unknown"
		}
		return *ev.UserAgent
	})
}

func (e *AggregationEngine) breakdown(ctx context.Context, key string, dimension func(storage.VisitEvent) string) ([]BreakdownRow, error) {
	events, err := e.visits.ByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, ev := range events {
		counts[dimension(ev)]++
	}

	rows := make([]BreakdownRow, 0, len(counts))
	for value, n := range counts {
		rows = append(rows, BreakdownRow{Value: value, Visits: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Visits != rows[j].Visits {
			return rows[i].Visits > rows[j].Visits
		}
		return rows[i].Value < rows[j].Value
	})
	return rows, nil
}
