package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	"github.com/GabrielWalak/delivery-prediction/pkg/cache"
)

// CachedPredictions stores predicted days in a cache.Service.
type CachedPredictions struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCachedPredictions(c cache.Service, ttl time.Duration) *CachedPredictions {
	return &CachedPredictions{cache: c, ttl: ttl}
}

func (p *CachedPredictions) Get(ctx context.Context, version string, f models.DeliveryFeatures) (float64, bool, error) {
	var days float64
	err := p.cache.Get(ctx, PredictionKey(version, f), &days)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return days, true, nil
}

func (p *CachedPredictions) Set(ctx context.Context, version string, f models.DeliveryFeatures, days float64) error {
	return p.cache.Set(ctx, PredictionKey(version, f), days, p.ttl)
}

// PredictionKey hashes the model version with the exact feature vector.
func PredictionKey(version string, f models.DeliveryFeatures) string {
	vec := f.Vector()
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return cache.GenerateKey("prediction", version, cache.HashKey(strings.Join(parts, "|")))
}

var _ repository.PredictionCache = (*CachedPredictions)(nil)
