package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-platform/beacon/webmodule"
)

type fakeModule struct {
	name     string
	basePath string
}

func (m *fakeModule) Name() string                            { return m.name }
func (m *fakeModule) BasePath() string                        { return m.basePath }
func (m *fakeModule) Begin(_ webmodule.Config) error          { return nil }
func (m *fakeModule) Routes(_ webmodule.RouteRegistrar) error { return nil }
func (m *fakeModule) Handle()                                 {}

func TestModuleSetAdd(t *testing.T) {
	set := NewModuleSet()
	require.NoError(t, set.Add(&fakeModule{name: "blog", basePath: "blog"}))
	require.NoError(t, set.Add(&fakeModule{name: "shop", basePath: "shop"}))
	assert.Len(t, set.All(), 2)
}

func TestModuleSetRejectsBadBasePaths(t *testing.T) {
	set := NewModuleSet()

	assert.Error(t, set.Add(nil))
	assert.Error(t, set.Add(&fakeModule{name: "x", basePath: ""}))
	assert.Error(t, set.Add(&fakeModule{name: "x", basePath: "/blog"}))
	assert.Error(t, set.Add(&fakeModule{name: "x", basePath: "blog/sub"}))
	for _, reserved := range reservedBasePaths {
		assert.Error(t, set.Add(&fakeModule{name: "x", basePath: reserved}), reserved)
	}

	require.NoError(t, set.Add(&fakeModule{name: "blog", basePath: "blog"}))
	assert.Error(t, set.Add(&fakeModule{name: "other", basePath: "blog"}))
}

func TestModuleSetSealed(t *testing.T) {
	set := NewModuleSet()
	require.NoError(t, set.Add(&fakeModule{name: "blog", basePath: "blog"}))
	set.seal()
	assert.Error(t, set.Add(&fakeModule{name: "shop", basePath: "shop"}))
}
