package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/nearby-deals/internal/geo"
	"github.com/fairyhunter13/nearby-deals/internal/model"
)

const (
	snapshotKey         = "active-offers"
	snapshotLoadTimeout = 5 * time.Second
)

// AvailabilityConfig tunes the availability query.
type AvailabilityConfig struct {
	CacheTTL      time.Duration
	MaxDistanceKm float64
	MaxResults    int
}

// AvailabilityService answers which offers can be redeemed right now.
// Results are snapshots: they may be stale by up to CacheTTL in quantity,
// but never include an offer outside its time window.
type AvailabilityService struct {
	offerRepo OfferRepositoryInterface
	cache     SnapshotCache
	cfg       AvailabilityConfig
	now       func() time.Time
	group     singleflight.Group
}

// NewAvailabilityService creates a new AvailabilityService.
// A nil cache or a zero CacheTTL reads straight from the store.
func NewAvailabilityService(offerRepo OfferRepositoryInterface, cache SnapshotCache, cfg AvailabilityConfig) *AvailabilityService {
	return &AvailabilityService{
		offerRepo: offerRepo,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ListActiveOffers returns offers that are active, in their window and in stock.
// When candidateIDs is non-nil only those offers are considered.
func (s *AvailabilityService) ListActiveOffers(ctx context.Context, candidateIDs []string) ([]model.Offer, error) {
	now := s.now()

	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		offers, err := s.offerRepo.ListActive(ctx, now, candidateIDs)
		if err != nil {
			return nil, fmt.Errorf("list active offers: %w", err)
		}
		return offers, nil
	}

	if candidateIDs != nil && len(candidateIDs) == 0 {
		return []model.Offer{}, nil
	}

	snapshot, err := s.snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return filterRedeemable(snapshot, now, candidateIDs), nil
}

// FindNearby returns redeemable offers near the given position, nearest first.
func (s *AvailabilityService) FindNearby(ctx context.Context, latitude, longitude float64) ([]model.OfferResponse, error) {
	offers, err := s.ListActiveOffers(ctx, nil)
	if err != nil {
		return nil, err
	}
	origin := geo.Point{Latitude: latitude, Longitude: longitude}
	return geo.FilterByLocation(offers, origin, s.cfg.MaxDistanceKm, s.cfg.MaxResults), nil
}

// snapshot returns the cached offer list, loading it once on a miss no matter
// how many callers are waiting.
//
// The shared load is detached from the caller that started it, so one client
// going away does not fail the others; each caller still stops waiting when its
// own ctx is done.
func (s *AvailabilityService) snapshot(ctx context.Context, now time.Time) ([]model.Offer, error) {
	offers, ok, err := s.cache.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("offer snapshot cache read failed, falling back to store")
	} else if ok {
		return offers, nil
	}

	ch := s.group.DoChan(snapshotKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotLoadTimeout)
		defer cancel()

		offers, err := s.offerRepo.ListActive(loadCtx, now, nil)
		if err != nil {
			return nil, fmt.Errorf("list active offers: %w", err)
		}
		if err := s.cache.Set(loadCtx, offers, s.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("offer snapshot cache write failed")
		}
		return offers, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list active offers: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Offer), nil
	}
}

// filterRedeemable copies the offers redeemable at now, optionally restricted
// to candidateIDs.
func filterRedeemable(offers []model.Offer, now time.Time, candidateIDs []string) []model.Offer {
	var allowed map[string]struct{}
	if candidateIDs != nil {
		allowed = make(map[string]struct{}, len(candidateIDs))
		for _, id := range candidateIDs {
			allowed[id] = struct{}{}
		}
	}

	result := make([]model.Offer, 0, len(offers))
	for i := range offers {
		if !offers[i].IsRedeemable(now) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[offers[i].ID]; !ok {
				continue
			}
		}
		result = append(result, offers[i])
	}
	return result
}
