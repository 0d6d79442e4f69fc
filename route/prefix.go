package route

import (
	"fmt"
	"strings"

	"github.com/lcx/hotplug/definition"
)

// PrefixSettings is the part of the host configuration the prefix
// algorithm reads.
type PrefixSettings struct {
	// RestPathPrefix is the global prefix, possibly empty.
	RestPathPrefix string
	// EnablePluginIDPrefix injects the plugin segment after the global
	// prefix.
	EnablePluginIDPrefix bool
}

// ComputePrefix returns the route prefix of a controller definition.
//
// With per-plugin prefixing disabled the global prefix is used as is, and
// an empty global prefix yields "" whatever the override says. With it
// enabled the plugin segment is the path-prefix override when present, the
// plugin id otherwise, joined to the global prefix with a single slash.
func ComputePrefix(def *definition.Definition, s PrefixSettings) (string, error) {
	global := s.RestPathPrefix
	if !s.EnablePluginIDPrefix && global == "" {
		return "", nil
	}

	segment := def.PluginID
	if def.Controller != nil && def.Controller.PathPrefix != nil {
		segment = *def.Controller.PathPrefix
		if segment == "" {
			return "", fmt.Errorf("%w: empty path prefix on %s", ErrRouteRegistration, def.Type.Name)
		}
	}

	if !s.EnablePluginIDPrefix {
		return global, nil
	}
	if global == "" {
		return segment, nil
	}
	return joinPath(global, segment), nil
}

// joinPath joins two fragments with exactly one slash at the boundary.
func joinPath(a, b string) string {
	switch {
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	default:
		return a + b
	}
}

// BuildPaths is the cartesian product prefix x classPaths x methodPaths.
// Missing class or method fragments count as one empty fragment. Each
// part loses one leading and one trailing slash, parts left empty are
// dropped and the rest joined with "/".
func BuildPaths(classPaths, methodPaths []string, prefix string) []string {
	if len(classPaths) == 0 {
		classPaths = []string{""}
	}
	if len(methodPaths) == 0 {
		methodPaths = []string{""}
	}
	out := make([]string, 0, len(classPaths)*len(methodPaths))
	for _, c := range classPaths {
		for _, m := range methodPaths {
			out = append(out, joinParts(prefix, c, m))
		}
	}
	return out
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/")
		if p == "" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}
