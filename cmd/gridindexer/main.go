package main

import (
	"io"
	stdlog "log"
	"os"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/namsral/flag"
	"github.com/paulmach/orb/geojson"

	"github.com/spatialix/gridfence"
	"github.com/spatialix/gridfence/storage/bbolt"
	"github.com/spatialix/gridfence/storage/exclusive"
)

const appName = "gridindexer"

var (
	version = "no version from LDFLAGS"

	geojsonPath = flag.String("geojsonPath", "features.geojson", "GeoJSON FeatureCollection to index")
	dbPath      = flag.String("dbPath", "out.db", "Database path")

	xmin  = flag.Float64("xmin", 0, "grid X axis min")
	xmax  = flag.Float64("xmax", 100, "grid X axis max")
	xcell = flag.Float64("xcell", 0.1, "grid X axis cell size")
	ymin  = flag.Float64("ymin", 0, "grid Y axis min")
	ymax  = flag.Float64("ymax", 100, "grid Y axis max")
	ycell = flag.Float64("ycell", 0.2, "grid Y axis cell size")
)

func main() {
	flag.Parse()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.Caller(5), "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)

	stdlog.SetOutput(log.NewStdlibAdapter(logger))

	grid := gridfence.Grid{
		{Min: *xmin, Max: *xmax, CellSize: *xcell},
		{Min: *ymin, Max: *ymax, CellSize: *ycell},
	}

	idx, err := exclusive.NewIndex(grid)
	if err != nil {
		level.Error(logger).Log("msg", "invalid grid", "error", err)
		os.Exit(2)
	}

	file, err := os.Open(*geojsonPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open GeoJSON", "error", err, "path", *geojsonPath)
		os.Exit(2)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		level.Error(logger).Log("msg", "failed to read GeoJSON", "error", err)
		os.Exit(2)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		level.Error(logger).Log("msg", "failed to decode GeoJSON", "error", err)
		os.Exit(2)
	}

	for _, f := range fc.Features {
		if _, err := idx.Put(f.Geometry, f.Properties); err != nil {
			level.Warn(logger).Log("msg", "skipping feature", "error", err, "properties", f.Properties)
		}
	}

	storage, clean, err := bbolt.NewStorage(*dbPath, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open DB", "error", err, "db_path", *dbPath)
		os.Exit(2)
	}
	defer clean()

	if err := storage.Index(idx.All(), grid, *geojsonPath, version); err != nil {
		level.Error(logger).Log("msg", "failed to write index", "error", err)
		os.Exit(2)
	}

	level.Info(logger).Log("msg", "index written", "feature_count", idx.Count(), "db_path", *dbPath)
}
