package resolver

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Lookup resolves a placeholder name to a property value.
type Lookup func(name string) (string, bool)

// Chain tries each lookup in order and returns the first non-empty value.
func Chain(lookups ...Lookup) Lookup {
	return func(name string) (string, bool) {
		for _, l := range lookups {
			if l == nil {
				continue
			}
			if v, ok := l(name); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// Env reads the process environment.
func Env() Lookup {
	return os.LookupEnv
}

// Viper reads host properties. Keys are case-insensitive and dotted.
func Viper(v *viper.Viper) Lookup {
	return func(name string) (string, bool) {
		if v == nil || !v.IsSet(name) {
			return "", false
		}
		return v.GetString(name), true
	}
}

// Dotenv reads the given .env files without touching the process
// environment. Missing files are an error.
func Dotenv(files ...string) (Lookup, error) {
	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, err
	}
	return Map(values), nil
}

// Map reads a fixed set of values.
func Map(values map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}
