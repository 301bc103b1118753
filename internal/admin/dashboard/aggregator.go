// Package dashboard computes the admin overview: user growth by ISO week,
// verifications and revenue by calendar month, and the review backlog.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const summaryKey = keyPrefix + "summary"

type Config struct {
	CacheTTL       time.Duration
	UrgentAfter    time.Duration
	RecentActivity int
}

type Aggregator struct {
	repo   Repository
	cache  Cache
	cfg    Config
	logger *zap.Logger
}

func NewAggregator(repo Repository, cache Cache, cfg Config, logger *zap.Logger) *Aggregator {
	if cfg.RecentActivity <= 0 {
		cfg.RecentActivity = 10
	}
	return &Aggregator{repo: repo, cache: cache, cfg: cfg, logger: logger}
}

// Summary returns the cached snapshot if one is fresh, otherwise computes
// it for the windows containing now. A snapshot is only cached when no
// Invalidate happened while it was being computed.
func (a *Aggregator) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	caching := a.cache != nil && a.cfg.CacheTTL > 0
	var gen uint64
	if a.cache != nil {
		if raw, ok, err := a.cache.Get(ctx, summaryKey); err != nil {
			a.logger.Warn("Dashboard cache read failed", zap.Error(err))
		} else if ok {
			var s Summary
			if err := json.Unmarshal(raw, &s); err == nil {
				return &s, nil
			}
		}
		if caching {
			var err error
			if gen, err = a.cache.Generation(ctx); err != nil {
				a.logger.Warn("Dashboard cache generation read failed", zap.Error(err))
				caching = false
			}
		}
	}

	s, err := a.Compute(ctx, now)
	if err != nil {
		return nil, err
	}

	if caching {
		if raw, err := json.Marshal(s); err == nil {
			stored, err := a.cache.SetIfGeneration(ctx, summaryKey, raw, a.cfg.CacheTTL, gen)
			switch {
			case err != nil:
				a.logger.Warn("Dashboard cache write failed", zap.Error(err))
			case !stored:
				a.logger.Debug("Dashboard invalidated during compute, snapshot not cached")
			}
		}
	}
	return s, nil
}

// Compute runs every aggregation query, bypassing the cache.
func (a *Aggregator) Compute(ctx context.Context, now time.Time) (*Summary, error) {
	w := WindowsAt(now)
	s := &Summary{
		WeekStart:  w.WeekStart,
		MonthStart: w.MonthStart,
		ComputedAt: now.UTC(),
	}
	nextWeek := w.WeekStart.AddDate(0, 0, 7)

	g, ctx := errgroup.WithContext(ctx)
	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	run("total users", func() (err error) {
		s.TotalUsers, err = a.repo.CountUsers(ctx)
		return
	})
	run("users this week", func() (err error) {
		s.NewUsersThisWeek, err = a.repo.CountUsersCreated(ctx, w.WeekStart, nextWeek)
		return
	})
	run("users last week", func() (err error) {
		s.NewUsersLastWeek, err = a.repo.CountUsersCreated(ctx, w.LastWeekStart, w.WeekStart)
		return
	})
	run("pending verifications", func() (err error) {
		s.PendingVerifications, err = a.repo.CountPendingRequests(ctx)
		return
	})
	run("urgent verifications", func() (err error) {
		s.UrgentVerifications, err = a.repo.CountPendingRequestsBefore(ctx, now.Add(-a.cfg.UrgentAfter))
		return
	})
	run("verified this month", func() (err error) {
		s.VerifiedThisMonth, err = a.repo.CountVerifiedCertifications(ctx, w.MonthStart, w.NextMonthStart)
		return
	})
	run("verified last month", func() (err error) {
		s.VerifiedLastMonth, err = a.repo.CountVerifiedCertifications(ctx, w.LastMonthStart, w.MonthStart)
		return
	})
	run("revenue", func() (err error) {
		s.RevenueThisMonthCents, s.TransactionsThisMonth, err = a.repo.Revenue(ctx, w.MonthStart, w.NextMonthStart)
		return
	})
	run("recent activity", func() (err error) {
		s.RecentActivity, err = a.repo.RecentDecisions(ctx, a.cfg.RecentActivity)
		return
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute dashboard: %w", err)
	}

	s.UsersWeekDelta = s.NewUsersThisWeek - s.NewUsersLastWeek
	s.VerifiedMonthDelta = s.VerifiedThisMonth - s.VerifiedLastMonth
	if s.RecentActivity == nil {
		s.RecentActivity = []Activity{}
	}
	return s, nil
}

// Invalidate satisfies the verification service's cache hook.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx)
}
