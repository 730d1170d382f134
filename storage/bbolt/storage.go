// Package bbolt persists an index's features into a bolt file so a
// load-once-query-many consumer can rebuild its index without reparsing the
// source data. Records are cbor encoded, geometries as WKB.
package bbolt

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor"
	log "github.com/go-kit/kit/log"
	"github.com/paulmach/orb/encoding/wkb"
	"go.etcd.io/bbolt"

	"github.com/spatialix/gridfence"
)

var featureRecordPool = sync.Pool{
	New: func() interface{} {
		return &featureRecord{}
	},
}

// featureRecord is the on-disk form of a feature. The id is not part of the
// record, it is encoded in the storage key.
type featureRecord struct {
	Geometry   []byte
	Properties map[string]interface{}
}

// Storage cold storage
type Storage struct {
	*bbolt.DB
	logger log.Logger
}

// NewStorage returns a cold storage using bbolt
func NewStorage(path string, logger log.Logger) (*Storage, func() error, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, nil, err
	}

	return &Storage{
		DB:     db,
		logger: log.With(logger, "component", "storage"),
	}, db.Close, nil
}

// NewROStorage returns a read only storage using bbolt
func NewROStorage(path string, logger log.Logger) (*Storage, func() error, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open DB for reading at %s: %w", path, err)
	}

	return &Storage{
		DB:     db,
		logger: log.With(logger, "component", "storage"),
	}, db.Close, nil
}

// Index writes all features and the snapshot infos in one transaction.
func (s *Storage) Index(features []gridfence.Feature, grid gridfence.Grid, filename, version string) error {
	return s.Update(func(tx *bbolt.Tx) error {
		fb, err := tx.CreateBucketIfNotExists([]byte("feature"))
		if err != nil {
			return err
		}
		ib, err := tx.CreateBucketIfNotExists([]byte("info"))
		if err != nil {
			return err
		}

		for _, f := range features {
			data, err := wkb.Marshal(f.Geometry)
			if err != nil {
				return fmt.Errorf("can't encode geometry for feature %d: %w", f.ID, err)
			}

			rec := featureRecord{
				Geometry:   data,
				Properties: f.Properties,
			}

			buf := new(bytes.Buffer)
			enc := cbor.NewEncoder(buf, cbor.CanonicalEncOptions())
			if err := enc.Encode(rec); err != nil {
				return err
			}

			if err := fb.Put(gridfence.FeatureKey(f.ID), buf.Bytes()); err != nil {
				return err
			}
		}

		infos := &gridfence.IndexInfos{
			Filename:       filename,
			IndexTime:      time.Now(),
			IndexerVersion: version,
			FeatureCount:   uint64(len(features)),
			Grid:           grid,
		}

		buf := new(bytes.Buffer)
		enc := cbor.NewEncoder(buf, cbor.CanonicalEncOptions())
		if err := enc.Encode(infos); err != nil {
			return err
		}

		return ib.Put(gridfence.InfoKey(), buf.Bytes())
	})
}

// LoadFeature loads one feature from the DB
func (s *Storage) LoadFeature(id gridfence.FeatureID) (*gridfence.Feature, error) {
	rec := &featureRecord{}
	err := s.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("feature"))
		if b == nil {
			return fmt.Errorf("no feature bucket, invalid DB")
		}
		v := b.Get(gridfence.FeatureKey(id))
		if v == nil {
			return fmt.Errorf("feature id not found: %d", id)
		}

		dec := cbor.NewDecoder(bytes.NewReader(v))
		return dec.Decode(rec)
	})
	if err != nil {
		return nil, err
	}

	return recordToFeature(rec, id)
}

// LoadFeatures streams every stored feature into add, in key order.
func (s *Storage) LoadFeatures(add func(gridfence.Feature) error) error {
	return s.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("feature"))
		if b == nil {
			return fmt.Errorf("no feature bucket, invalid DB")
		}

		c := b.Cursor()
		prefix := []byte{gridfence.FeatureKeyPrefix()}

		for key, value := c.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = c.Next() {
			rec := featureRecordPool.Get().(*featureRecord)
			*rec = featureRecord{}

			dec := cbor.NewDecoder(bytes.NewReader(value))
			if err := dec.Decode(rec); err != nil {
				featureRecordPool.Put(rec)
				return err
			}

			f, err := recordToFeature(rec, gridfence.FeatureIDFromKey(key))
			featureRecordPool.Put(rec)
			if err != nil {
				return err
			}

			if err := add(*f); err != nil {
				return err
			}
		}

		return nil
	})
}

// LoadIndexInfos loads index infos from the DB
func (s *Storage) LoadIndexInfos() (*gridfence.IndexInfos, error) {
	infos := &gridfence.IndexInfos{}

	err := s.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("info"))
		if b == nil {
			return fmt.Errorf("can't find infos entries, invalid DB")
		}
		value := b.Get(gridfence.InfoKey())
		if value == nil {
			return fmt.Errorf("can't find infos entries, invalid DB")
		}
		dec := cbor.NewDecoder(bytes.NewReader(value))
		return dec.Decode(infos)
	})

	return infos, err
}

func recordToFeature(rec *featureRecord, id gridfence.FeatureID) (*gridfence.Feature, error) {
	g, err := wkb.Unmarshal(rec.Geometry)
	if err != nil {
		return nil, fmt.Errorf("can't decode geometry for feature %d: %w", id, err)
	}

	return &gridfence.Feature{
		ID:         id,
		Geometry:   g,
		Properties: rec.Properties,
	}, nil
}
