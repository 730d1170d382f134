// Package server exposes a loaded index over HTTP.
package server

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
	log "github.com/go-kit/kit/log"
	"github.com/paulmach/orb/geojson"

	"github.com/spatialix/gridfence"
)

// Server exposes index queries
type Server struct {
	idx    *gridfence.Index
	logger log.Logger
	cache  *ristretto.Cache
}

type Options struct {
	// CacheMaxCost bounds the rendered feature cache, in bytes-ish cost units.
	CacheMaxCost int64
}

func New(idx *gridfence.Index, logger log.Logger, opts Options) (*Server, error) {
	logger = log.With(logger, "component", "server")

	maxCost := opts.CacheMaxCost
	if maxCost <= 0 {
		maxCost = 1 << 26
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4, // number of keys to track frequency
		MaxCost:     maxCost,
		BufferItems: 64, // number of keys per Get buffer.
	})
	if err != nil {
		return nil, fmt.Errorf("cache error: %w", err)
	}

	return &Server{
		idx:    idx,
		logger: logger,
		cache:  cache,
	}, nil
}

// feature renders a stored feature as GeoJSON, cached by id.
func (s *Server) feature(id gridfence.FeatureID) (*geojson.Feature, bool) {
	if v, ok := s.cache.Get(uint64(id)); ok {
		return v.(*geojson.Feature), true
	}

	f, ok := s.idx.Get(id)
	if !ok {
		return nil, false
	}

	gf := geojson.NewFeature(f.Geometry)
	gf.ID = uint64(f.ID)
	gf.Properties = geojson.Properties(f.Properties)

	s.cache.Set(uint64(id), gf, 1)

	return gf, true
}
