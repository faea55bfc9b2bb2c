package packs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func bundle(name string, deps ...string) *Bundle {
	return &Bundle{Manifest: types.PackManifest{Name: name, Dependencies: deps}}
}

func names(bundles []*Bundle) []string {
	out := make([]string, len(bundles))
	for i, b := range bundles {
		out[i] = b.Name()
	}
	return out
}

func TestInstallOrder(t *testing.T) {
	ordered, err := InstallOrder([]*Bundle{
		bundle("c", "b"),
		bundle("d"),
		bundle("b", "a"),
		bundle("a", "external"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(ordered))
}

func TestInstallOrder_Empty(t *testing.T) {
	ordered, err := InstallOrder(nil)
	require.NoError(t, err)
	assert.Empty(t, ordered)
}

func TestInstallOrder_Cycle(t *testing.T) {
	ordered, err := InstallOrder([]*Bundle{
		bundle("x", "y"),
		bundle("y", "x"),
		bundle("z", "x"),
		bundle("a"),
		bundle("self", "self"),
	})
	require.ErrorIs(t, err, types.ErrDependencyCycle)
	assert.Equal(t, []string{"a"}, names(ordered))
	assert.Contains(t, err.Error(), "self, x, y, z")
}
