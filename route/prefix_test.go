package route

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/hotplug/component"
	"github.com/lcx/hotplug/definition"
)

type ctl struct{}

func controllerDef(t *testing.T, pluginID string, opts ...component.Option) *definition.Definition {
	t.Helper()
	opts = append([]component.Option{
		component.AsController("/c"),
		component.WithHandlers(component.Handle("h", component.Method(func(*ctl, http.ResponseWriter, *http.Request) {})).Get("/h")),
	}, opts...)
	d, err := definition.Classify(pluginID, component.Define[ctl]("demo.Ctl", opts...))
	require.NoError(t, err)
	return d
}

func TestComputePrefix(t *testing.T) {
	def := controllerDef(t, "foo")

	cases := []struct {
		name string
		s    PrefixSettings
		want string
	}{
		{"global and id", PrefixSettings{"/api", true}, "/api/foo"},
		{"global with trailing slash", PrefixSettings{"/api/", true}, "/api/foo"},
		{"id only", PrefixSettings{"", true}, "foo"},
		{"global only", PrefixSettings{"/api", false}, "/api"},
		{"nothing", PrefixSettings{"", false}, ""},
	}
	for _, tc := range cases {
		got, err := ComputePrefix(def, tc.s)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestComputePrefixOverride(t *testing.T) {
	def := controllerDef(t, "foo", component.WithPathPrefix("bar"))
	got, err := ComputePrefix(def, PrefixSettings{"/api", true})
	require.NoError(t, err)
	assert.Equal(t, "/api/bar", got)

	got, err = ComputePrefix(def, PrefixSettings{"", true})
	require.NoError(t, err)
	assert.Equal(t, "bar", got)
}

func TestComputePrefixEmptyOverride(t *testing.T) {
	def := controllerDef(t, "foo", component.WithPathPrefix(""))

	_, err := ComputePrefix(def, PrefixSettings{"/api", true})
	assert.ErrorIs(t, err, ErrRouteRegistration)

	// Disabled prefixing with no global prefix never looks at the override.
	got, err := ComputePrefix(def, PrefixSettings{"", false})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/api/foo", joinPath("/api", "foo"))
	assert.Equal(t, "/api/foo", joinPath("/api/", "/foo"))
	assert.Equal(t, "/api/foo", joinPath("/api", "/foo"))
	assert.Equal(t, "/api/foo", joinPath("/api/", "foo"))
}

func TestBuildPaths(t *testing.T) {
	assert.ElementsMatch(t, []string{"p/a/b", "p/a/c"}, BuildPaths([]string{"/a"}, []string{"/b", "/c"}, "p"))
	assert.ElementsMatch(t,
		[]string{"api/foo/x/1", "api/foo/x/2", "api/foo/y/1", "api/foo/y/2"},
		BuildPaths([]string{"x/", "/y"}, []string{"1", "/2/"}, "/api/foo"))
}

func TestBuildPathsDefaults(t *testing.T) {
	assert.Equal(t, []string{"p"}, BuildPaths(nil, nil, "p"))
	assert.Equal(t, []string{"p/b"}, BuildPaths(nil, []string{"/b"}, "p"))
	assert.Equal(t, []string{"a"}, BuildPaths([]string{"/a"}, nil, ""))
	assert.Equal(t, []string{""}, BuildPaths(nil, nil, ""))
	assert.Equal(t, []string{"p/x"}, BuildPaths([]string{"/"}, []string{"x"}, "p"))
}
