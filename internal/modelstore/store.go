package modelstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
)

// ModelType is the closed set of cached fit kinds
type ModelType string

const (
	TypeElasticity ModelType = "elasticity"
	TypeForecast   ModelType = "forecast"
	TypeROI        ModelType = "roi"
)

// ErrVersionExists is returned when a (sku, type, fit timestamp) key is written twice
var ErrVersionExists = errors.New("model version already exists")

// Key identifies one fit version
type Key struct {
	SKU      string
	Type     ModelType
	FittedAt time.Time
}

func (k Key) id() versionID {
	return versionID{sku: k.SKU, typ: k.Type, nanos: k.FittedAt.UTC().UnixNano()}
}

// versionID is the comparable form of Key (time.Time carries a location pointer)
type versionID struct {
	sku   string
	typ   ModelType
	nanos int64
}

type seriesID struct {
	sku string
	typ ModelType
}

// Record is one stored fit. Exactly one of the model fields is set.
type Record struct {
	Key        Key
	Elasticity *contracts.ElasticityModel
	Forecast   *contracts.ForecastModel
	ROI        *contracts.ROIReport
}

// snapshot is immutable once published
type snapshot struct {
	versions map[versionID]Record
	latest   map[seriesID]Key
}

// Store is the append-only model cache
// ⭐ SSOT: fit 버전은 한 번만 기록, 덮어쓰지 않음. 새 fit이 이전 fit을 대체(supersede)
//
// Reads load an immutable snapshot through an atomic pointer and never lock.
// Writes are serialized and publish a copied snapshot.
type Store struct {
	mu     sync.Mutex // writer path only
	snap   atomic.Pointer[snapshot]
	mirror Mirror
	log    zerolog.Logger
}

// NewStore creates an empty store. mirror may be nil.
func NewStore(mirror Mirror, log zerolog.Logger) *Store {
	s := &Store{
		mirror: mirror,
		log:    log.With().Str("component", "modelstore.store").Logger(),
	}
	s.snap.Store(&snapshot{
		versions: make(map[versionID]Record),
		latest:   make(map[seriesID]Key),
	})
	return s
}

// PutElasticity stores an elasticity fit under (model key, elasticity, fitted at)
func (s *Store) PutElasticity(ctx context.Context, m *contracts.ElasticityModel) error {
	if m == nil || m.Key == "" || m.FittedAt.IsZero() {
		return fmt.Errorf("elasticity fit requires key and fit timestamp")
	}
	c := *m
	return s.put(ctx, Record{Key: Key{SKU: m.Key, Type: TypeElasticity, FittedAt: m.FittedAt}, Elasticity: &c}, true)
}

// PutForecast stores a forecast fit under (sku, forecast, fitted at)
func (s *Store) PutForecast(ctx context.Context, m *contracts.ForecastModel) error {
	if m == nil || m.SKU == "" || m.FittedAt.IsZero() {
		return fmt.Errorf("forecast fit requires sku and fit timestamp")
	}
	c := *m
	return s.put(ctx, Record{Key: Key{SKU: m.SKU, Type: TypeForecast, FittedAt: m.FittedAt}, Forecast: &c}, true)
}

// PutROI stores an ROI report under the timestamp of the forecast it was measured against
func (s *Store) PutROI(ctx context.Context, r *contracts.ROIReport, fittedAt time.Time) error {
	if r == nil || r.SKU == "" || fittedAt.IsZero() {
		return fmt.Errorf("roi report requires sku and fit timestamp")
	}
	c := *r
	return s.put(ctx, Record{Key: Key{SKU: r.SKU, Type: TypeROI, FittedAt: fittedAt}, ROI: &c}, true)
}

func (s *Store) put(ctx context.Context, rec Record, mirror bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	id := rec.Key.id()
	if _, ok := cur.versions[id]; ok {
		return fmt.Errorf("%s %s@%s: %w", rec.Key.Type, rec.Key.SKU, rec.Key.FittedAt.Format(time.RFC3339Nano), ErrVersionExists)
	}

	next := &snapshot{
		versions: make(map[versionID]Record, len(cur.versions)+1),
		latest:   make(map[seriesID]Key, len(cur.latest)+1),
	}
	for k, v := range cur.versions {
		next.versions[k] = v
	}
	for k, v := range cur.latest {
		next.latest[k] = v
	}
	next.versions[id] = rec

	series := seriesID{sku: rec.Key.SKU, typ: rec.Key.Type}
	superseded := false
	if prev, ok := next.latest[series]; !ok || rec.Key.FittedAt.After(prev.FittedAt) {
		next.latest[series] = rec.Key
		superseded = ok
	}
	s.snap.Store(next)

	s.log.Debug().
		Str("sku", rec.Key.SKU).
		Str("type", string(rec.Key.Type)).
		Time("fitted_at", rec.Key.FittedAt).
		Bool("superseded", superseded).
		Msg("Model version stored")

	if mirror && s.mirror != nil {
		// 미러 실패는 로컬 캐시를 무효화하지 않음
		if err := s.mirror.Put(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("sku", rec.Key.SKU).Msg("Model mirror write failed")
		}
	}
	return nil
}

// Get returns one exact fit version
func (s *Store) Get(key Key) (Record, bool) {
	rec, ok := s.snap.Load().versions[key.id()]
	return rec, ok
}

// Latest returns the newest fit of a sku and type
func (s *Store) Latest(sku string, typ ModelType) (Record, bool) {
	snap := s.snap.Load()
	key, ok := snap.latest[seriesID{sku: sku, typ: typ}]
	if !ok {
		return Record{}, false
	}
	return snap.versions[key.id()], true
}

// LatestElasticity returns a copy of the newest elasticity fit
func (s *Store) LatestElasticity(sku string) (*contracts.ElasticityModel, bool) {
	rec, ok := s.Latest(sku, TypeElasticity)
	if !ok {
		return nil, false
	}
	m := *rec.Elasticity
	return &m, true
}

// LatestForecast returns a copy of the newest forecast fit
func (s *Store) LatestForecast(sku string) (*contracts.ForecastModel, bool) {
	rec, ok := s.Latest(sku, TypeForecast)
	if !ok {
		return nil, false
	}
	m := *rec.Forecast
	return &m, true
}

// LatestROI returns a copy of the newest ROI report
func (s *Store) LatestROI(sku string) (*contracts.ROIReport, bool) {
	rec, ok := s.Latest(sku, TypeROI)
	if !ok {
		return nil, false
	}
	r := *rec.ROI
	return &r, true
}

// Versions lists every stored fit of a sku and type, oldest first
func (s *Store) Versions(sku string, typ ModelType) []Key {
	var keys []Key
	for _, rec := range s.snap.Load().versions {
		if rec.Key.SKU == sku && rec.Key.Type == typ {
			keys = append(keys, rec.Key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].FittedAt.Before(keys[j].FittedAt)
	})
	return keys
}

// Len returns the number of stored versions
func (s *Store) Len() int {
	return len(s.snap.Load().versions)
}

// Warm loads the newest mirrored fits of the given SKUs into the local store
func (s *Store) Warm(ctx context.Context, skus []string) (int, error) {
	if s.mirror == nil {
		return 0, nil
	}
	loaded := 0
	for _, sku := range skus {
		for _, typ := range []ModelType{TypeElasticity, TypeForecast, TypeROI} {
			rec, ok, err := s.mirror.Latest(ctx, sku, typ)
			if err != nil {
				return loaded, fmt.Errorf("warm %s %s: %w", typ, sku, err)
			}
			if !ok {
				continue
			}
			if err := s.put(ctx, rec, false); err != nil {
				if errors.Is(err, ErrVersionExists) {
					continue
				}
				return loaded, err
			}
			loaded++
		}
	}
	s.log.Info().Int("skus", len(skus)).Int("loaded", loaded).Msg("Model store warmed")
	return loaded, nil
}
