package template

import "fmt"

// Proxy is the read-only view handed to helper code when it needs to
// iterate a List or Map Value without being able to mutate the underlying
// tree ("collections are exposed through a read-only proxy"). Writes
// always fail with a TemplateError; the only way to produce a changed tree
// is a structural operator building a new Value.
type Proxy struct {
	v Value
}

// NewProxy wraps a List or Map Value. Any other kind is a programmer error:
// callers should check Kind() before constructing a Proxy.
func NewProxy(v Value) (*Proxy, error) {
	if v.Kind() != KindList && v.Kind() != KindMap {
		return nil, fmt.Errorf("TemplateError: cannot create a proxy over a %s value", v.Kind())
	}
	return &Proxy{v: v}, nil
}

// Length returns the number of elements, in declaration order for maps.
func (p *Proxy) Length() int {
	if list, ok := p.v.AsList(); ok {
		return len(list)
	}
	entries, _ := p.v.AsMap()
	return len(entries)
}

// At returns the i'th list element (list proxies only).
func (p *Proxy) At(i int) (Value, error) {
	list, ok := p.v.AsList()
	if !ok {
		return Value{}, fmt.Errorf("TemplateError: At() is only valid on a list proxy")
	}
	if i < 0 || i >= len(list) {
		return Value{}, fmt.Errorf("TemplateError: index %d out of range (length %d)", i, len(list))
	}
	return list[i], nil
}

// Get returns a named field (map proxies only).
func (p *Proxy) Get(key string) (Value, bool) {
	return p.v.MapGet(key)
}

// ProxyEntry is one (key, value) pair yielded by Entries, in the order the
// map/list was declared. For list proxies, Key is the stringified index.
type ProxyEntry struct {
	Key   string
	Value Value
}

// Entries returns every element in declaration order, for range-style
// iteration by callers that don't need List/Map-specific accessors.
func (p *Proxy) Entries() []ProxyEntry {
	if list, ok := p.v.AsList(); ok {
		out := make([]ProxyEntry, len(list))
		for i, v := range list {
			out[i] = ProxyEntry{Key: formatNumber(float64(i)), Value: v}
		}
		return out
	}
	entries, _ := p.v.AsMap()
	out := make([]ProxyEntry, len(entries))
	for i, e := range entries {
		out[i] = ProxyEntry{Key: e.Key, Value: e.Value}
	}
	return out
}

// Raw is the reserved symbolic accessor (spec's "$value") that returns the
// underlying parsed tree as plain Go values, bypassing the proxy — used
// only by plugin code that needs to serialise a whole collection (e.g. to
// JSON) rather than walk it field by field.
func (p *Proxy) Raw() any {
	return ToNative(p.v)
}

// Set always fails: the proxy contract is read-only. Structural
// operators are the only sanctioned way to produce a modified tree.
func (p *Proxy) Set(key string, _ Value) error {
	return fmt.Errorf("TemplateError: cannot assign %q: template collections are read-only", key)
}

// Delete always fails, for the same reason as Set.
func (p *Proxy) Delete(key string) error {
	return fmt.Errorf("TemplateError: cannot delete %q: template collections are read-only", key)
}
