package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Loader parses environment variables into config structs and caches one
// parsed copy per struct type. The zero value is not usable; use NewLoader.
type Loader struct {
	envFiles []string
	dotenv   sync.Once

	mu     sync.RWMutex
	values map[string]any
}

// NewLoader returns a Loader that reads the given .env files (the default
// ".env" when none are passed) once, before the first parse. Missing files
// are ignored.
func NewLoader(envFiles ...string) *Loader {
	return &Loader{
		envFiles: envFiles,
		values:   make(map[string]any),
	}
}

var defaultLoader = NewLoader()

// Load parses the environment into v using the process-wide loader.
//
//	var cfg subscription.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	return LoadWith(defaultLoader, v)
}

// MustLoad works like Load but panics on failure. Use it for settings the
// process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadWith parses the environment into v using l. Subsequent calls for the
// same type return the cached copy.
func LoadWith[T any](l *Loader, v *T) error {
	if l == nil {
		return ErrNilLoader
	}
	if v == nil {
		return ErrNilPointer
	}

	l.dotenv.Do(func() {
		// .env is optional; the environment alone is a valid source
		_ = godotenv.Load(l.envFiles...)
	})

	key := typeName[T]()

	l.mu.RLock()
	cached, ok := l.values[key]
	l.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	l.mu.Lock()
	if existing, ok := l.values[key]; ok {
		parsed = existing.(T)
	} else {
		l.values[key] = parsed
	}
	l.mu.Unlock()

	*v = parsed
	return nil
}

// Reset drops every cached config. Intended for tests.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.values)
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String()
}
