package plugin

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// live calls fn for every instantiated component of a started plugin.
func (a *Application) live(fn func(bean string, obj any)) {
	for _, def := range a.registry.All() {
		if obj, ok := a.container.Live(def.BeanName); ok {
			fn(def.BeanName, obj)
		}
	}
}

// Extensions returns the live components of started plugins tagged as
// implementations of point, keyed by bean name.
func (a *Application) Extensions(point string) map[string]any {
	out := make(map[string]any)
	for _, def := range a.registry.All() {
		if def.Type.Extension == nil || def.Type.Extension.Point != point {
			continue
		}
		if obj, ok := a.container.Live(def.BeanName); ok {
			out[def.BeanName] = obj
		}
	}
	return out
}

// BeansOf returns the live components of started plugins whose value is a
// T, keyed by bean name. T is usually an interface the host defines.
func BeansOf[T any](a *Application) map[string]T {
	out := make(map[string]T)
	a.live(func(bean string, obj any) {
		if v, ok := obj.(T); ok {
			out[bean] = v
		}
	})
	return out
}

// BeanOf returns the single live component that is a T.
func BeanOf[T any](a *Application) (T, error) {
	var zero T
	beans := BeansOf[T](a)
	switch len(beans) {
	case 0:
		return zero, fmt.Errorf("%w: %s", ErrNoBean, typeName[T]())
	case 1:
		for _, v := range beans {
			return v, nil
		}
	}
	names := make([]string, 0, len(beans))
	for n := range beans {
		names = append(names, n)
	}
	sort.Strings(names)
	return zero, fmt.Errorf("%w: %s: %s", ErrAmbiguousBean, typeName[T](), strings.Join(names, ", "))
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
