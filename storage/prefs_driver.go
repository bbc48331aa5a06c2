package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	prefsCacheSlots  = 5
	prefsMinBlobSize = 2 * 1024
	prefsMaxBlobSize = 64 * 1024
)

// prefsRecord is one entry inside a collection blob.
type prefsRecord struct {
	Key  string `json:"key"`
	Data string `json:"data"`
}

// PrefsDriver stores each collection as a single JSON-array blob in a
// flat namespace directory, mirroring a flash preferences partition.
// Every mutation rewrites the whole blob; a bounded cache keeps the most
// recently touched collections decoded in memory.
type PrefsDriver struct {
	mu    sync.Mutex
	dir   string
	cache map[string][]prefsRecord
	order []string // least recently used first
}

// NewPrefsDriver creates the namespace directory if needed.
func NewPrefsDriver(dir string) (*PrefsDriver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &PrefsDriver{
		dir:   dir,
		cache: make(map[string][]prefsRecord),
	}, nil
}

func (d *PrefsDriver) blobPath(collection string) string {
	return filepath.Join(d.dir, collection+".json")
}

// load returns the decoded collection, reading it from disk on a cache
// miss. Caller holds d.mu.
func (d *PrefsDriver) load(collection string) []prefsRecord {
	if records, ok := d.cache[collection]; ok {
		d.touch(collection)
		return records
	}
	var records []prefsRecord
	raw, err := os.ReadFile(d.blobPath(collection))
	if err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			log.WithError(err).WithField("collection", collection).
				Warn("prefs: corrupt collection blob, treating as empty")
			records = nil
		}
	}
	d.insert(collection, records)
	return records
}

// insert places a decoded collection into the cache, evicting the least
// recently used slot when full. All cached blobs are clean (every
// mutation is flushed before it returns), so eviction loses nothing.
func (d *PrefsDriver) insert(collection string, records []prefsRecord) {
	if _, ok := d.cache[collection]; !ok && len(d.order) >= prefsCacheSlots {
		evict := d.order[0]
		d.order = d.order[1:]
		delete(d.cache, evict)
	}
	d.cache[collection] = records
	d.touch(collection)
}

func (d *PrefsDriver) touch(collection string) {
	for i, name := range d.order {
		if name == collection {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.order = append(d.order, collection)
}

// flush serializes the collection and rewrites its blob. Blobs above the
// hard cap are refused so a runaway collection cannot exhaust the
// partition. Caller holds d.mu.
func (d *PrefsDriver) flush(collection string, records []prefsRecord) bool {
	buf := make([]byte, 0, prefsMinBlobSize)
	raw, err := json.Marshal(records)
	if err != nil {
		log.WithError(err).WithField("collection", collection).Error("prefs: serialize failed")
		return false
	}
	buf = append(buf, raw...)
	if len(buf) > prefsMaxBlobSize {
		log.WithFields(log.Fields{"collection": collection, "size": len(buf)}).
			Error("prefs: collection blob exceeds size cap")
		return false
	}
	if err := os.WriteFile(d.blobPath(collection), buf, 0o644); err != nil {
		log.WithError(err).WithField("collection", collection).Error("prefs: write failed")
		return false
	}
	d.cache[collection] = records
	return true
}

// Store implements Driver.
func (d *PrefsDriver) Store(collection, key, data string) bool {
	if !validName(collection) || !validName(key) || data == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	records := d.load(collection)
	updated := false
	out := make([]prefsRecord, len(records))
	copy(out, records)
	for i := range out {
		if out[i].Key == key {
			out[i].Data = data
			updated = true
			break
		}
	}
	if !updated {
		out = append(out, prefsRecord{Key: key, Data: data})
	}
	return d.flush(collection, out)
}

// Retrieve implements Driver.
func (d *PrefsDriver) Retrieve(collection, key string) string {
	if !validName(collection) || !validName(key) {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.load(collection) {
		if r.Key == key {
			return r.Data
		}
	}
	return ""
}

// Remove implements Driver.
func (d *PrefsDriver) Remove(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	records := d.load(collection)
	for i, r := range records {
		if r.Key == key {
			out := make([]prefsRecord, 0, len(records)-1)
			out = append(out, records[:i]...)
			out = append(out, records[i+1:]...)
			return d.flush(collection, out)
		}
	}
	return false
}

// ListKeys implements Driver.
func (d *PrefsDriver) ListKeys(collection string) []string {
	if !validName(collection) {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	records := d.load(collection)
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys
}

// Exists implements Driver.
func (d *PrefsDriver) Exists(collection, key string) bool {
	return d.Retrieve(collection, key) != ""
}
