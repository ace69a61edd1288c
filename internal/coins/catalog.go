// Package coins maps free-text asset names to the canonical identifiers used
// by the market data feed.
package coins

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	ErrDuplicateKey = errors.New("duplicate catalog key")
	ErrInvalidEntry = errors.New("invalid catalog entry")
)

// Mapping is one instrument known to the price feed.
type Mapping struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Symbol  string   `yaml:"symbol" json:"symbol"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
}

type catalogFile struct {
	Coins []Mapping `yaml:"coins"`
}

// Catalog is an immutable, ordered list of mappings. Order decides ties.
type Catalog struct {
	entries []Mapping
	// lower-cased copies, same index as entries
	ids, symbols, names []string
	aliases             [][]string
}

// NewCatalog validates entries and builds a catalog. Every exact key (id,
// symbol, name or alias, case-insensitive) must belong to a single entry.
func NewCatalog(entries []Mapping) (*Catalog, error) {
	c := &Catalog{}
	owner := map[string]string{}
	claim := func(key, id string) error {
		if key == "" {
			return nil
		}
		if prev, ok := owner[key]; ok && prev != id {
			return fmt.Errorf("%w: %q claimed by %s and %s", ErrDuplicateKey, key, prev, id)
		}
		owner[key] = id
		return nil
	}
	for _, e := range entries {
		id := norm(e.ID)
		if id == "" || strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.Symbol) == "" {
			return nil, fmt.Errorf("%w: %+v", ErrInvalidEntry, e)
		}
		if _, ok := owner[id]; ok && owner[id] == id {
			return nil, fmt.Errorf("%w: id %q listed twice", ErrDuplicateKey, id)
		}
		aliases := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			aliases = append(aliases, norm(a))
		}
		for _, k := range append([]string{id, norm(e.Symbol), norm(e.Name)}, aliases...) {
			if err := claim(k, id); err != nil {
				return nil, err
			}
		}
		m := e
		m.Aliases = append([]string(nil), e.Aliases...)
		c.entries = append(c.entries, m)
		c.ids = append(c.ids, id)
		c.symbols = append(c.symbols, norm(e.Symbol))
		c.names = append(c.names, norm(e.Name))
		c.aliases = append(c.aliases, aliases)
	}
	return c, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Coins)
}

// LoadCatalog reads a YAML catalog from path, or returns the built-in one
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(b)
}

var builtin *Catalog

func init() {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	builtin = c
}

// Default returns the built-in catalog.
func Default() *Catalog { return builtin }

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
