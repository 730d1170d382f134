package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"

	"github.com/spatialix/gridfence"
)

// QueryHandler HTTP 1.1 Handler answering intersection queries,
// body is a GeoJSON geometry, response a GeoJSON FeatureCollection
func (s *Server) QueryHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "can't read body", 400)
		return
	}

	g, err := geojson.UnmarshalGeometry(body)
	if err != nil {
		http.Error(w, "invalid GeoJSON geometry", 400)
		return
	}

	feats, err := s.idx.Query(g.Geometry())
	if err != nil {
		level.Error(s.logger).Log("msg", "query failed", "error", err)
		http.Error(w, err.Error(), 500)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range feats {
		if gf, ok := s.feature(f.ID); ok {
			fc.Append(gf)
		}
	}

	w.Header().Set("Content-Type", "application/json")

	data, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Write(data)
}

// FeatureHandler HTTP 1.1 Handler returning one feature as GeoJSON
func (s *Server) FeatureHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	fid, err := strconv.ParseUint(vars["fid"], 10, 64)
	if err != nil {
		http.Error(w, "invalid parameter fid", 400)
		return
	}

	gf, ok := s.feature(gridfence.FeatureID(fid))
	if !ok {
		http.Error(w, "{\"msg\": \"feature not found\"}", 404)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	data, err := gf.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Write(data)
}

// StatsHandler HTTP 1.1 Handler returning index stats
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"feature_count": s.idx.Count(),
		"grid":          s.idx.Grid(),
	})
}
