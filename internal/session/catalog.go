package session

import (
	"fmt"

	"github.com/kalambet/intelapi/internal/engine"
)

// Names of the models every catalog serves.
const (
	ModelBase       = "base"
	ModelPermissive = "permissive"
)

// Model is a named engine instance.
type Model struct {
	Name   string
	Engine engine.Engine
}

// Catalog maps model names to engine instances. It is built once at startup
// and only read afterwards, so it is safe for concurrent use.
type Catalog struct {
	models []Model
	byName map[string]Model
}

// NewCatalog builds a catalog from models in the given order.
func NewCatalog(models ...Model) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Model, len(models))}
	for _, m := range models {
		if m.Name == "" {
			return nil, fmt.Errorf("catalog: model without a name")
		}
		if m.Engine == nil {
			return nil, fmt.Errorf("catalog: model %q has no engine", m.Name)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate model %q", m.Name)
		}
		c.byName[m.Name] = m
		c.models = append(c.models, m)
	}
	return c, nil
}

// Lookup returns the model registered under name.
func (c *Catalog) Lookup(name string) (Model, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// Names returns model names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name
	}
	return names
}
