package rates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
	"github.com/Lebim01/dotacasino-api-sub001/internal/fx"
)

// Provider hands out the latest daily snapshot. The adjustment and
// conversion paths never fetch rates themselves; they receive a snapshot
// per call from here.
type Provider struct {
	feed   *FeedClient
	cache  *Cache
	logger *slog.Logger
}

func NewProvider(feed *FeedClient, cache *Cache, logger *slog.Logger) *Provider {
	return &Provider{feed: feed, cache: cache, logger: logger}
}

func (p *Provider) GetDailyRates(ctx context.Context) (fx.Snapshot, error) {
	cached, err := p.cache.Get(ctx)
	if err != nil {
		p.logger.Warn("rate cache lookup failed, falling back to feed", "error", err)
	}
	if cached != nil {
		snapshot, err := cached.toSnapshot()
		if err == nil {
			return snapshot, nil
		}
		p.logger.Warn("discarding malformed cached snapshot", "error", err)
	}

	return p.Refresh(ctx)
}

// Refresh fetches a fresh snapshot from the feed and stores it for the
// other instances. A cache write failure is logged, not surfaced; the
// fetched snapshot is still good for this caller.
func (p *Provider) Refresh(ctx context.Context) (fx.Snapshot, error) {
	snapshot, err := p.feed.FetchDaily(ctx)
	if err != nil {
		return fx.Snapshot{}, fmt.Errorf("Refresh: %w", err)
	}

	if err := p.cache.Set(ctx, fromSnapshot(snapshot)); err != nil {
		p.logger.Error("failed to store rate snapshot", "error", err)
	} else {
		p.logger.Info("rate snapshot refreshed",
			"reference", snapshot.Reference,
			"currencies", len(snapshot.Rates),
		)
	}
	return snapshot, nil
}

func (s *cachedSnapshot) toSnapshot() (fx.Snapshot, error) {
	snapshot := fx.Snapshot{
		Reference: domain.Currency(s.Reference),
		Rates:     make(map[domain.Currency]decimal.Decimal, len(s.Rates)),
	}
	for code, raw := range s.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return fx.Snapshot{}, fmt.Errorf("toSnapshot: %s: %w", code, err)
		}
		snapshot.Rates[domain.Currency(code)] = rate
	}
	return snapshot, nil
}

func fromSnapshot(snapshot fx.Snapshot) *cachedSnapshot {
	cached := &cachedSnapshot{
		Reference: string(snapshot.Reference),
		Rates:     make(map[string]string, len(snapshot.Rates)),
		FetchedAt: time.Now().UTC(),
	}
	for currency, rate := range snapshot.Rates {
		cached.Rates[string(currency)] = rate.String()
	}
	return cached
}

// Refresher re-pulls the feed on a fixed schedule so the shared snapshot
// never ages past the refresh interval.
type Refresher struct {
	provider *Provider
	interval time.Duration
	logger   *slog.Logger
}

func NewRefresher(provider *Provider, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{provider: provider, interval: interval, logger: logger}
}

func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("rate refresher started", "interval", r.interval)

	if _, err := r.provider.Refresh(ctx); err != nil {
		r.logger.Error("initial rate refresh failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rate refresher stopped")
			return
		case <-ticker.C:
			if _, err := r.provider.Refresh(ctx); err != nil {
				r.logger.Error("rate refresh failed", "error", err)
			}
		}
	}
}
