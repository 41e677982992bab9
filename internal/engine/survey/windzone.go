// internal/engine/survey/windzone.go
package survey

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/models"
)

// Default fixing schedule returned with every zone answer.
const (
	fixingSchedule = "All perimeter tiles twice-fixed; clips required for zones A & B"
	fixingStandard = "BS 5534:2014+A2:2018"
)

// WindZoneOracle answers a wind-uplift lookup for a postcode. The engine's
// contract is only: given a postcode, return a zone, a fixing schedule and a
// standard reference. A production deployment plugs in an authoritative
// lookup behind this interface.
type WindZoneOracle interface {
	Lookup(ctx context.Context, postcode string) (models.FixingSpec, error)
}

// RandomOracle is the stub selector: uniform over the five BS 5534 zones.
// It exists so the engine can run without the real mapping service.
type RandomOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomOracle() *RandomOracle {
	return &RandomOracle{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

var zones = []string{"Zone 1", "Zone 2", "Zone 3", "Zone 4", "Zone 5"}

func (o *RandomOracle) Lookup(_ context.Context, _ string) (models.FixingSpec, error) {
	o.mu.Lock()
	zone := zones[o.rng.Intn(len(zones))]
	o.mu.Unlock()

	return models.FixingSpec{
		Zone:     zone,
		Schedule: fixingSchedule,
		Ref:      fixingStandard,
	}, nil
}

// CachedOracle wraps another oracle with a redis cache keyed by postcode, so
// repeated lookups for the same postcode return the same answer.
type CachedOracle struct {
	inner WindZoneOracle
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedOracle(inner WindZoneOracle, rdb *redis.Client, ttl time.Duration) *CachedOracle {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &CachedOracle{inner: inner, redis: rdb, ttl: ttl}
}

func cacheKey(postcode string) string {
	return "windzone:" + strings.ToUpper(strings.ReplaceAll(postcode, " ", ""))
}

func (o *CachedOracle) Lookup(ctx context.Context, postcode string) (models.FixingSpec, error) {
	key := cacheKey(postcode)

	if val, err := o.redis.Get(ctx, key).Result(); err == nil {
		var spec models.FixingSpec
		if err := json.Unmarshal([]byte(val), &spec); err == nil {
			return spec, nil
		}
	}

	spec, err := o.inner.Lookup(ctx, postcode)
	if err != nil {
		return models.FixingSpec{}, stderrors.NewOracleError(err)
	}

	if data, err := json.Marshal(spec); err == nil {
		o.redis.Set(ctx, key, data, o.ttl)
	}

	return spec, nil
}
