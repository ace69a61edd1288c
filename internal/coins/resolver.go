package coins

import (
	"slices"
	"strings"
)

// Resolver turns user input into a canonical coin id.
type Resolver interface {
	Resolve(input string) (string, bool)
	IsRecognized(input string) bool
	Info(id string) (Mapping, bool)
}

var _ Resolver = (*Catalog)(nil)

// Resolve returns the canonical id for input. Rules are tried in order and
// the first hit wins, ties going to catalog order:
// exact id, exact symbol, exact name, exact alias, then substring of name,
// symbol or any alias. Empty input never matches.
func (c *Catalog) Resolve(input string) (string, bool) {
	in := norm(input)
	if in == "" {
		return "", false
	}
	if i := c.exact(in); i >= 0 {
		return c.entries[i].ID, true
	}
	for i := range c.entries {
		if strings.Contains(c.names[i], in) || strings.Contains(c.symbols[i], in) {
			return c.entries[i].ID, true
		}
		for _, a := range c.aliases[i] {
			if strings.Contains(a, in) {
				return c.entries[i].ID, true
			}
		}
	}
	return "", false
}

// ResolveExact is Resolve without the substring fallback: ambiguous or
// partial input yields no match.
func (c *Catalog) ResolveExact(input string) (string, bool) {
	in := norm(input)
	if in == "" {
		return "", false
	}
	if i := c.exact(in); i >= 0 {
		return c.entries[i].ID, true
	}
	return "", false
}

func (c *Catalog) exact(in string) int {
	if i := slices.Index(c.ids, in); i >= 0 {
		return i
	}
	if i := slices.Index(c.symbols, in); i >= 0 {
		return i
	}
	if i := slices.Index(c.names, in); i >= 0 {
		return i
	}
	for i, as := range c.aliases {
		if slices.Contains(as, in) {
			return i
		}
	}
	return -1
}

func (c *Catalog) IsRecognized(input string) bool {
	_, ok := c.Resolve(input)
	return ok
}

// Info returns the entry whose canonical id is id.
func (c *Catalog) Info(id string) (Mapping, bool) {
	i := slices.Index(c.ids, norm(id))
	if i < 0 {
		return Mapping{}, false
	}
	return c.entries[i], true
}

// Available lists the catalog in order.
func (c *Catalog) Available() []Mapping {
	return slices.Clone(c.entries)
}

func (c *Catalog) Len() int { return len(c.entries) }
