// Package store maintains the different states of data across the system.
// One Store instance is shared by every link, the dispatch server and the
// control input loop; all access is serialised on a single mutex since the
// workload is a handful of keys at sub-100Hz cadence.
package store

import (
	"sync"

	"github.com/asdine/storm/v3"
	"github.com/sirupsen/logrus"
)

// Value is a telemetry or actuator scalar: float64 or string. JSON decoding
// always yields float64 for the numeric keys.
type Value = interface{}

const cacheBucket = "data"

type Store struct {
	mu   sync.Mutex
	data map[Partition]map[string]Value

	transmission map[Partition]map[string]bool

	// db mirrors the latest values onto disk; nil disables caching.
	db  *storm.DB
	log *logrus.Entry
}

// NewStore builds the shared store. db may be nil to keep the store purely
// in memory; when set, every write is mirrored into the cache bucket.
func NewStore(db *storm.DB) (s *Store) {
	s = &Store{
		data:         make(map[Partition]map[string]Value),
		transmission: make(map[Partition]map[string]bool),
		db:           db,
		log:          logrus.WithField("component", "store"),
	}

	for id, keys := range transmissionKeys {
		s.data[id] = make(map[string]Value)
		set := make(map[string]bool, len(keys))
		for _, key := range keys {
			set[key] = true
		}
		s.transmission[id] = set
	}

	return
}

// Get returns the values for keys belonging to p's transmission set that are
// currently present. With no keys it returns the whole set; keys outside the
// set are silently excluded.
func (s *Store) Get(p Partition, keys ...string) map[string]Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Value)
	slot := s.data[p]
	set := s.transmission[p]

	if len(keys) == 0 {
		for key := range set {
			if v, ok := slot[key]; ok {
				out[key] = v
			}
		}
		return out
	}

	for _, key := range keys {
		if !set[key] {
			continue
		}
		if v, ok := slot[key]; ok {
			out[key] = v
		}
	}
	return out
}

// GetTransmit returns the snapshot destined for the vehicle: every
// device-owned key read from its authoritative slot, with the safeguard
// transform applied. The transform modifies the returned copy only.
func (s *Store) GetTransmit(keys ...string) map[string]Value {
	s.mu.Lock()
	data := make(map[string]Value)
	if len(keys) == 0 {
		for key, owner := range keysLookup {
			if v, ok := s.data[owner][key]; ok {
				data[key] = v
			}
		}
	} else {
		for _, key := range keys {
			owner, ok := keysLookup[key]
			if !ok {
				continue
			}
			if v, ok := s.data[owner][key]; ok {
				data[key] = v
			}
		}
	}
	s.mu.Unlock()

	return Safeguard(data)
}

// Set applies one write originating from partition p.
//
// Surface-origin writes target the owning device slot and are ramped when
// the key is an actuator, so a new target is approached in RAMP_RATE steps
// rather than jumped to. Device-origin writes land in the device slot and
// are mirrored verbatim into the surface view.
func (s *Store) Set(p Partition, key string, value Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(p, key, value)
}

// SetMany applies a decoded frame in one critical section.
func (s *Store) SetMany(p Partition, values map[string]Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		s.set(p, key, value)
	}
}

func (s *Store) set(p Partition, key string, value Value) {
	if p != Surface {
		s.data[p][key] = value
		s.data[Surface][key] = value
		s.persist(key, value)
		return
	}

	owner, ok := keysLookup[key]
	if !ok {
		s.log.Debugf("dropping write to unkown key %s", key)
		return
	}
	slot := s.data[owner]

	target, numeric := toFloat(value)
	prev, exists := slot[key]
	if !exists || !numeric || !isActuator(key) {
		slot[key] = value
		s.persist(key, value)
		return
	}

	cur, numeric := toFloat(prev)
	if !numeric {
		slot[key] = value
		s.persist(key, value)
		return
	}

	// Ramp towards the target without overshooting to avoid current spikes.
	step := target - cur
	if step > RAMP_RATE {
		step = RAMP_RATE
	} else if step < -RAMP_RATE {
		step = -RAMP_RATE
	}
	cur += step

	slot[key] = cur
	s.persist(key, cur)
}

// SetDefaults resets every actuator key to its idle value. This is the
// canonical fail-safe on control-station disconnect.
func (s *Store) SetDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range DEFAULT {
		s.data[keysLookup[key]][key] = value
		s.persist(key, value)
	}
}

// Clear wipes the in-memory state and the disk cache. Call it once at
// process start.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.data {
		s.data[id] = make(map[string]Value)
	}

	if s.db != nil {
		if err := s.db.Drop(cacheBucket); err != nil && err != storm.ErrNotFound {
			s.log.Warnf("unable to clear cache: %v", err)
		}
	}
}

func (s *Store) persist(key string, value Value) {
	if s.db == nil {
		return
	}
	if err := s.db.Set(cacheBucket, key, value); err != nil {
		s.log.Debugf("unable to cache %s: %v", key, err)
	}
}

func toFloat(value Value) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
