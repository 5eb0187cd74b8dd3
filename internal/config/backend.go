package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigBackend abstracts config storage. Keys are dotted "section.name"
// paths.
type ConfigBackend interface {
	Get(key string) (val any, ok bool)
	Set(key string, val any) error
	Delete(key string) error
}

// fileBackend stores config as a TOML document with one table per section.
type fileBackend struct {
	path string
	data map[string]map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]map[string]any)}
	b.load()
	return b
}

func (b *fileBackend) load() {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return
	}
	if _, err := toml.DecodeFile(b.path, &b.data); err != nil {
		slog.Warn("could not parse config file, using default values", "path", b.path, "error", err)
		b.data = make(map[string]map[string]any)
	}
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(b.data); err != nil {
		f.Close()
		return fmt.Errorf("encoding config file: %w", err)
	}
	return f.Close()
}

func splitKey(key string) (section, name string) {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return "", key
	}
	return section, name
}

func (b *fileBackend) Get(key string) (any, bool) {
	section, name := splitKey(key)
	v, ok := b.data[section][name]
	return v, ok
}

func (b *fileBackend) Set(key string, val any) error {
	section, name := splitKey(key)
	if b.data[section] == nil {
		b.data[section] = make(map[string]any)
	}
	b.data[section][name] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	section, name := splitKey(key)
	delete(b.data[section], name)
	if len(b.data[section]) == 0 {
		delete(b.data, section)
	}
	return b.save()
}
