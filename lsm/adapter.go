package lsm

import (
	"github.com/kodeshop/lsmkv/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter wraps LSM to implement common.StorageEngine. The engine itself
// is already []byte-keyed and tracks real amplification figures (see
// LSM.Stats), so unlike the teacher's version of this file, Adapter does
// no key conversion or estimation of its own — it is a straight
// pass-through plus the common.Stats/common.Iterator shape conversion.
type Adapter struct {
	lsm *LSM
}

// NewAdapter opens an LSM engine at config.DataDir and wraps it. Pass a
// Prometheus registerer (or nil to skip registration).
func NewAdapter(config Config, registry prometheus.Registerer) (*Adapter, error) {
	engine, err := Open(config, registry)
	if err != nil {
		return nil, err
	}
	return &Adapter{lsm: engine}, nil
}

// Put implements common.StorageEngine
func (a *Adapter) Put(key, value []byte) error {
	return a.lsm.Put(key, value)
}

// Get implements common.StorageEngine
func (a *Adapter) Get(key []byte) ([]byte, error) {
	value, found, err := a.lsm.Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrKeyNotFound
	}
	return value, nil
}

// Delete implements common.StorageEngine
func (a *Adapter) Delete(key []byte) error {
	return a.lsm.Delete(key)
}

// Close implements common.StorageEngine
func (a *Adapter) Close() error {
	return a.lsm.Close()
}

// Sync implements common.StorageEngine
func (a *Adapter) Sync() error {
	return a.lsm.Sync()
}

// Stats implements common.StorageEngine
func (a *Adapter) Stats() common.Stats {
	s := a.lsm.Stats()
	return common.Stats{
		NumKeys:       s.NumKeys,
		NumSegments:   s.NumSegments,
		ActiveSegSize: s.ActiveSegSize,
		TotalDiskSize: s.TotalDiskSize,
		WriteCount:    s.WriteCount,
		ReadCount:     s.ReadCount,
		CompactCount:  s.CompactCount,
		WriteAmp:      s.WriteAmp,
		SpaceAmp:      s.SpaceAmp,
	}
}

// Compact implements common.StorageEngine by enqueueing one compaction
// pass on the background worker and returning immediately, unlike the
// teacher's no-op stub.
func (a *Adapter) Compact() error {
	return a.lsm.CompactNow()
}

// Scan exposes range queries beyond the common.StorageEngine surface, for
// the CLI and for tests. limit <= 0 means unbounded.
func (a *Adapter) Scan(start, end []byte, limit int) (common.Iterator, error) {
	return a.lsm.Scan(start, end, limit)
}

// BatchPut exposes atomic multi-key writes beyond the common.StorageEngine
// surface.
func (a *Adapter) BatchPut(entries []Entry) error {
	return a.lsm.BatchPut(entries)
}

// BatchDelete exposes atomic multi-key tombstones beyond the
// common.StorageEngine surface.
func (a *Adapter) BatchDelete(keys [][]byte) error {
	return a.lsm.BatchDelete(keys)
}

// Health exposes the engine's coarse health probe.
func (a *Adapter) Health() HealthStatus {
	return a.lsm.Health()
}
