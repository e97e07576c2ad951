package client

import (
	"net/http"
	"slices"
	"sort"
	"strings"
)

// Headers is an ordered list of header fields with case-insensitive names.
// The zero value is an empty, usable set. It is converted to and from
// http.Header only when a request is sent or a response is read.
type Headers struct {
	fields []headerField
}

type headerField struct {
	name  string
	value string
}

// NewHeaders builds Headers from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewHeaders(pairs ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

// Get returns the first value of name, or "".
func (h Headers) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value
		}
	}
	return ""
}

// Values returns every value of name in insertion order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	return slices.ContainsFunc(h.fields, func(f headerField) bool {
		return strings.EqualFold(f.name, name)
	})
}

// Set replaces all values of name with value, keeping the position of the first one.
func (h *Headers) Set(name, value string) {
	out := h.fields[:0]
	found := false
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			if found {
				continue
			}
			found = true
			f.value = value
		}
		out = append(out, f)
	}
	if !found {
		out = append(out, headerField{name: name, value: value})
	}
	h.fields = out
}

// Add appends a value for name.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Del removes every value of name.
func (h *Headers) Del(name string) {
	h.fields = slices.DeleteFunc(h.fields, func(f headerField) bool {
		return strings.EqualFold(f.name, name)
	})
}

// Len returns the number of fields.
func (h Headers) Len() int {
	return len(h.fields)
}

// Names returns the distinct field names in insertion order.
func (h Headers) Names() []string {
	var names []string
	for _, f := range h.fields {
		if !slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, f.name) }) {
			names = append(names, f.name)
		}
	}
	return names
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	return Headers{fields: slices.Clone(h.fields)}
}

// applyTo writes the fields into an outgoing http.Header.
func (h Headers) applyTo(dst http.Header) {
	for _, name := range h.Names() {
		dst.Del(name)
		for _, v := range h.Values(name) {
			dst.Add(name, v)
		}
	}
}

// headersFromHTTP adapts a received http.Header. Names are sorted since
// http.Header has no order of its own.
func headersFromHTTP(src http.Header) Headers {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	var h Headers
	for _, name := range names {
		for _, v := range src[name] {
			h.Add(name, v)
		}
	}
	return h
}
