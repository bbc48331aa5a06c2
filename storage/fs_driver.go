package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	fsCacheSlots     = 10
	fsCacheEntryMax  = 2 * 1024
	fsChunkedReadMin = 16 * 1024
	fsReadChunkSize  = 1024
)

// FilesystemDriver stores each (collection, key) pair as its own file at
// <base>/<collection>/<key>.json, the littlefs layout. A small cache of
// recently read values accelerates repeated lookups; values above 2 KiB
// bypass it. Files above 16 KiB are read in 1 KiB chunks so one large
// record cannot monopolize the loop.
type FilesystemDriver struct {
	mu    sync.Mutex
	base  string
	cache map[string]string // "<collection>/<key>" -> data
	order []string          // least recently used first
}

// NewFilesystemDriver ensures the base directory exists.
func NewFilesystemDriver(base string) (*FilesystemDriver, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FilesystemDriver{
		base:  base,
		cache: make(map[string]string),
	}, nil
}

func (d *FilesystemDriver) filePath(collection, key string) string {
	return filepath.Join(d.base, collection, key+".json")
}

func cacheKey(collection, key string) string {
	return collection + "/" + key
}

func (d *FilesystemDriver) cachePut(ck, data string) {
	if len(data) > fsCacheEntryMax {
		return
	}
	if _, ok := d.cache[ck]; !ok && len(d.order) >= fsCacheSlots {
		evict := d.order[0]
		d.order = d.order[1:]
		delete(d.cache, evict)
	}
	d.cache[ck] = data
	d.cacheTouch(ck)
}

func (d *FilesystemDriver) cacheTouch(ck string) {
	for i, name := range d.order {
		if name == ck {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.order = append(d.order, ck)
}

func (d *FilesystemDriver) cacheDrop(ck string) {
	if _, ok := d.cache[ck]; !ok {
		return
	}
	delete(d.cache, ck)
	for i, name := range d.order {
		if name == ck {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Store implements Driver. The collection directory is created on first
// write.
func (d *FilesystemDriver) Store(collection, key, data string) bool {
	if !validName(collection) || !validName(key) || data == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	dir := filepath.Join(d.base, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).WithField("collection", collection).Error("fs: mkdir failed")
		return false
	}
	if err := os.WriteFile(d.filePath(collection, key), []byte(data), 0o644); err != nil {
		log.WithError(err).WithField("key", key).Error("fs: write failed")
		return false
	}
	d.cachePut(cacheKey(collection, key), data)
	return true
}

// Retrieve implements Driver.
func (d *FilesystemDriver) Retrieve(collection, key string) string {
	if !validName(collection) || !validName(key) {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ck := cacheKey(collection, key)
	if data, ok := d.cache[ck]; ok {
		d.cacheTouch(ck)
		return data
	}
	data, ok := d.readFile(d.filePath(collection, key))
	if !ok {
		return ""
	}
	d.cachePut(ck, data)
	return data
}

// readFile reads a record file, switching to chunked reads for large
// files. The read fails unless the bytes obtained equal the file size.
func (d *FilesystemDriver) readFile(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if info.Size() <= fsChunkedReadMin {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	var sb strings.Builder
	sb.Grow(int(info.Size()))
	buf := make([]byte, fsReadChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).WithField("file", path).Error("fs: chunked read failed")
			return "", false
		}
	}
	if int64(sb.Len()) != info.Size() {
		log.WithField("file", path).Error("fs: short read")
		return "", false
	}
	return sb.String(), true
}

// Remove implements Driver.
func (d *FilesystemDriver) Remove(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cacheDrop(cacheKey(collection, key))
	if err := os.Remove(d.filePath(collection, key)); err != nil {
		return false
	}
	return true
}

// ListKeys implements Driver.
func (d *FilesystemDriver) ListKeys(collection string) []string {
	if !validName(collection) {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(d.base, collection))
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys
}

// Exists implements Driver.
func (d *FilesystemDriver) Exists(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	d.mu.Lock()
	if _, ok := d.cache[cacheKey(collection, key)]; ok {
		d.mu.Unlock()
		return true
	}
	d.mu.Unlock()
	_, err := os.Stat(d.filePath(collection, key))
	return err == nil
}
