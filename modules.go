package beacon

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/webmodule"
)

// reservedBasePaths collide with platform pages and can not be used by
// modules.
var reservedBasePaths = []string{"api", "login", "logout", "account", "portal", "status", "wifi", "metrics"}

// ModuleSet validates and holds the registered application modules.
// Modules must be added before the platform starts.
type ModuleSet struct {
	modules []webmodule.Module
	byPath  map[string]webmodule.Module
	sealed  bool
}

func NewModuleSet() *ModuleSet {
	return &ModuleSet{byPath: make(map[string]webmodule.Module)}
}

// Add registers a module. Base paths must be unique, non-empty,
// without a leading slash and outside the reserved set.
func (s *ModuleSet) Add(m webmodule.Module) error {
	if s.sealed {
		return errors.New("modules can not be added after startup")
	}
	if m == nil {
		return errors.New("module must not be nil")
	}
	base := m.BasePath()
	if base == "" {
		return errors.Errorf("module %q has an empty base path", m.Name())
	}
	if strings.HasPrefix(base, "/") {
		return errors.Errorf("module %q base path %q must not start with /", m.Name(), base)
	}
	if strings.Contains(base, "/") {
		return errors.Errorf("module %q base path %q must be a single segment", m.Name(), base)
	}
	for _, reserved := range reservedBasePaths {
		if base == reserved {
			return errors.Errorf("module %q base path %q is reserved", m.Name(), base)
		}
	}
	if _, ok := s.byPath[base]; ok {
		return errors.Errorf("base path %q already taken", base)
	}
	s.byPath[base] = m
	s.modules = append(s.modules, m)
	log.WithField("module", m.Name()).WithField("base_path", base).Info("module registered")
	return nil
}

// All returns the modules in registration order.
func (s *ModuleSet) All() []webmodule.Module {
	return s.modules
}

// seal freezes the set; called when the platform starts.
func (s *ModuleSet) seal() { s.sealed = true }
