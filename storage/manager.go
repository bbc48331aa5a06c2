package storage

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Reserved driver names registered by the manager itself.
const (
	// PrefsDriverName is the flash-preferences style blob driver
	PrefsDriverName = "json"
	// FilesystemDriverName is the file-per-record driver
	FilesystemDriverName = "littlefs"
	// BadgerDriverName is the badger-backed driver
	BadgerDriverName = "badger"
	// DatabaseDriverName is the gorm-backed driver
	DatabaseDriverName = "database"
	// RedisDriverName is the redis-backed driver
	RedisDriverName = "redis"
)

// Manager is the named registry of byte-store drivers. The prefs and
// filesystem drivers are always registered; the rest depend on config.
// The default driver cannot be removed.
type Manager struct {
	mu          sync.RWMutex
	drivers     map[string]Driver
	defaultName string
}

// NewManager builds the registry from cfg, wiring every configured
// driver up front so a bad backend fails the boot instead of the first
// request.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("storage: data_dir must be set")
	}
	m := &Manager{drivers: make(map[string]Driver)}

	prefs, err := NewPrefsDriver(filepath.Join(cfg.DataDir, "prefs"))
	if err != nil {
		return nil, errors.Wrap(err, "storage: prefs driver")
	}
	m.drivers[PrefsDriverName] = prefs

	fs, err := NewFilesystemDriver(filepath.Join(cfg.DataDir, "records"))
	if err != nil {
		return nil, errors.Wrap(err, "storage: filesystem driver")
	}
	m.drivers[FilesystemDriverName] = fs

	if cfg.Badger != nil {
		badgerDriver, err := NewBadgerDriver(cfg.Badger.Path)
		if err != nil {
			return nil, errors.Wrap(err, "storage: badger driver")
		}
		m.drivers[BadgerDriverName] = badgerDriver
	}
	if cfg.Database != nil {
		dbDriver, err := NewDatabaseDriver(*cfg.Database)
		if err != nil {
			return nil, errors.Wrap(err, "storage: database driver")
		}
		m.drivers[DatabaseDriverName] = dbDriver
	}
	if cfg.Redis != nil {
		redisDriver, err := NewRedisDriver(*cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "storage: redis driver")
		}
		m.drivers[RedisDriverName] = redisDriver
	}

	m.defaultName = cfg.Default
	if m.defaultName == "" {
		m.defaultName = PrefsDriverName
	}
	if _, ok := m.drivers[m.defaultName]; !ok {
		return nil, errors.Errorf("storage: default driver '%s' is not configured", m.defaultName)
	}
	log.WithFields(
		log.Fields{
			"drivers": m.DriverNames(),
			"default": m.defaultName,
		},
	).Info("storage manager initialized")
	return m, nil
}

// Driver returns the driver registered under name; the empty name
// resolves to the default driver. Unknown names return nil.
func (m *Manager) Driver(name string) Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.defaultName
	}
	return m.drivers[name]
}

// DefaultName returns the name of the default driver.
func (m *Manager) DefaultName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName
}

// Query starts a query on the default driver.
func (m *Manager) Query(collection string) *QueryBuilder {
	return NewQuery(m.Driver(""), collection)
}

// QueryOn starts a query on a named driver; nil if the name is unknown.
func (m *Manager) QueryOn(driverName, collection string) *QueryBuilder {
	driver := m.Driver(driverName)
	if driver == nil {
		return nil
	}
	return NewQuery(driver, collection)
}

// Register adds a driver under a new name. Overwriting is refused so a
// module cannot shadow the platform's drivers.
func (m *Manager) Register(name string, driver Driver) error {
	if name == "" || driver == nil {
		return errors.New("storage: name and driver are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[name]; ok {
		return errors.Errorf("storage: driver '%s' already registered", name)
	}
	m.drivers[name] = driver
	return nil
}

// Remove unregisters a driver. Removing the default driver is
// forbidden.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == m.defaultName {
		return errors.New("storage: cannot remove the default driver")
	}
	if _, ok := m.drivers[name]; !ok {
		return errors.Errorf("storage: driver '%s' not registered", name)
	}
	delete(m.drivers, name)
	return nil
}

// DriverNames lists the registered driver names.
func (m *Manager) DriverNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.drivers))
	for name := range m.drivers {
		names = append(names, name)
	}
	return names
}
