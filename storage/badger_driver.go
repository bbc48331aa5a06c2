package storage

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// badgerEnvelope wraps a stored value with its write timestamp.
type badgerEnvelope struct {
	Data      string `msgpack:"data"`
	UpdatedAt int64  `msgpack:"updated_at"`
}

// BadgerDriver is a byte-store driver over a badger database. Keys are
// namespaced as <collection>/<key>; values carry a msgpack envelope.
// Suited to targets with a real disk where the prefs blob format would
// rewrite too much per mutation.
type BadgerDriver struct {
	db *badger.DB
}

// NewBadgerDriver opens (or creates) the database at path.
func NewBadgerDriver(path string) (*BadgerDriver, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDriver{db: db}, nil
}

// Close releases the underlying database.
func (d *BadgerDriver) Close() error {
	return d.db.Close()
}

func badgerKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}

// Store implements Driver.
func (d *BadgerDriver) Store(collection, key, data string) bool {
	if !validName(collection) || !validName(key) || data == "" {
		return false
	}
	value, err := msgpack.Marshal(badgerEnvelope{Data: data, UpdatedAt: time.Now().Unix()})
	if err != nil {
		return false
	}
	err = d.db.Update(
		func(txn *badger.Txn) error {
			return txn.Set(badgerKey(collection, key), value)
		},
	)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("badger: store failed")
		return false
	}
	return true
}

// Retrieve implements Driver.
func (d *BadgerDriver) Retrieve(collection, key string) string {
	if !validName(collection) || !validName(key) {
		return ""
	}
	var env badgerEnvelope
	err := d.db.View(
		func(txn *badger.Txn) error {
			item, err := txn.Get(badgerKey(collection, key))
			if err != nil {
				return err
			}
			return item.Value(
				func(val []byte) error {
					return msgpack.Unmarshal(val, &env)
				},
			)
		},
	)
	if err != nil {
		return ""
	}
	return env.Data
}

// Remove implements Driver.
func (d *BadgerDriver) Remove(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	existed := d.Exists(collection, key)
	if !existed {
		return false
	}
	err := d.db.Update(
		func(txn *badger.Txn) error {
			return txn.Delete(badgerKey(collection, key))
		},
	)
	return err == nil
}

// ListKeys implements Driver.
func (d *BadgerDriver) ListKeys(collection string) []string {
	if !validName(collection) {
		return nil
	}
	prefix := []byte(collection + "/")
	var keys []string
	_ = d.db.View(
		func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := it.Item().Key()
				keys = append(keys, string(k[len(prefix):]))
			}
			return nil
		},
	)
	return keys
}

// Exists implements Driver.
func (d *BadgerDriver) Exists(collection, key string) bool {
	if !validName(collection) || !validName(key) {
		return false
	}
	err := d.db.View(
		func(txn *badger.Txn) error {
			_, err := txn.Get(badgerKey(collection, key))
			return err
		},
	)
	return err == nil
}
