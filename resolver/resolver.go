// Package resolver binds plugin config files onto config components.
package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/lcx/hotplug/definition"
	"github.com/lcx/hotplug/log"
)

// ErrConfigResolution is returned when a present config file cannot be
// read, parsed or bound.
var ErrConfigResolution = errors.New("config resolution failed")

var placeholder = regexp.MustCompile(`\$\{(.*?)\}`)

// Resolver holds the config directory map and the property lookup used
// for placeholders.
type Resolver struct {
	mu     sync.RWMutex
	files  map[string]string
	lookup Lookup
}

// New creates a resolver. A nil lookup resolves nothing, so every
// placeholder collapses to its bare name.
func New(lookup Lookup) *Resolver {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Resolver{files: make(map[string]string), lookup: lookup}
}

// Scan maps every regular file in dir by name. A name already known keeps
// its first path. An empty or missing dir is ignored.
func (r *Resolver) Scan(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("dir", dir).Msg("plugin config dir not found")
			return nil
		}
		return fmt.Errorf("scan config dir: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := r.files[e.Name()]; !ok {
			r.files[e.Name()] = filepath.Join(dir, e.Name())
		}
	}
	return nil
}

// File returns the path scanned for name.
func (r *Resolver) File(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.files[name]
	return p, ok
}

// Resolve binds the config file of def onto target, a pointer to a struct.
// Without a scanned file target is returned untouched. On any failure
// target is left untouched as well.
func (r *Resolver) Resolve(def *definition.Definition, target any) (any, error) {
	if def.Config == nil {
		return target, fmt.Errorf("%w: %s is not a config component", ErrConfigResolution, def.BeanName)
	}
	path, ok := r.File(def.Config.File)
	if !ok {
		log.Warn().Str("file", def.Config.File).Str("bean", def.BeanName).Msg("config file not found")
		return target, nil
	}
	if _, err := os.Stat(path); err != nil {
		return target, fmt.Errorf("%w: config file [%s] not exists: %v", ErrConfigResolution, path, err)
	}

	props, err := r.load(path)
	if err != nil {
		return target, err
	}
	if err := bind(props, target); err != nil {
		return target, fmt.Errorf("%w: %s: %v", ErrConfigResolution, def.BeanName, err)
	}
	log.Info().Str("file", path).Str("bean", def.BeanName).Msg("config bound")
	return target, nil
}

// load parses path by extension and interpolates every string in it.
func (r *Resolver) load(path string) (map[string]any, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: unknown config file [%s] type", ErrConfigResolution, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfigResolution, path, err)
	}

	props := map[string]any{}
	switch ext {
	case "yml", "YML", "yaml", "YAML":
		err = yaml.Unmarshal(data, &props)
	case "json":
		err = json.Unmarshal(data, &props)
	default:
		return nil, fmt.Errorf("%w: unsupported config type [%s]: %s", ErrConfigResolution, path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfigResolution, path, err)
	}
	return r.interpolate(props).(map[string]any), nil
}

// interpolate rewrites every string at any depth of v.
func (r *Resolver) interpolate(v any) any {
	switch t := v.(type) {
	case string:
		return r.ResolveProperty(t)
	case map[string]any:
		for k, val := range t {
			t[k] = r.interpolate(val)
		}
		return t
	case map[any]any:
		for k, val := range t {
			t[k] = r.interpolate(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = r.interpolate(val)
		}
		return t
	default:
		return v
	}
}

// ResolveProperty replaces each ${name} in s by the lookup value of name,
// or by the bare name when the lookup yields nothing.
func (r *Resolver) ResolveProperty(s string) string {
	if s == "" {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := r.lookup(name); ok && v != "" {
			return v
		}
		return name
	})
}

// bind decodes props into a copy of *target and commits only on success.
func bind(props map[string]any, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("target %T is not a non-nil pointer", target)
	}
	staged := reflect.New(rv.Elem().Type())
	staged.Elem().Set(rv.Elem())

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           staged.Interface(),
		WeaklyTypedInput: false,
		ErrorUnused:      false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		return err
	}
	rv.Elem().Set(staged.Elem())
	return nil
}
