package engine

import (
	"fmt"

	"github.com/kbukum/whisper-server/util"
)

// DefaultModels maps the served identifiers to model references.
var DefaultModels = map[string]string{
	"whisper-1":      "openai/whisper-large-v3",
	"whisper-tiny":   "openai/whisper-tiny",
	"whisper-small":  "openai/whisper-small",
	"whisper-medium": "openai/whisper-medium",
	"whisper-large":  "openai/whisper-large-v3",
}

// Catalog is the fixed set of supported identifiers. It is immutable after
// construction.
type Catalog struct {
	models map[string]string
	ids    []string
}

// NewCatalog builds a catalog from identifier to model reference.
func NewCatalog(models map[string]string) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog: no models configured")
	}
	c := &Catalog{models: make(map[string]string, len(models))}
	for id, model := range models {
		if id == "" || model == "" {
			return nil, fmt.Errorf("catalog: empty identifier or model in %q=%q", id, model)
		}
		c.models[id] = model
	}
	c.ids = util.SortedKeys(c.models)
	return c, nil
}

// DefaultCatalog returns the catalog of DefaultModels.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(DefaultModels)
	return c
}

// Supported reports whether id is served.
func (c *Catalog) Supported(id string) bool {
	_, ok := c.models[id]
	return ok
}

// Model returns the model reference for id.
func (c *Catalog) Model(id string) (string, bool) {
	m, ok := c.models[id]
	return m, ok
}

// IDs returns the supported identifiers in sorted order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}
