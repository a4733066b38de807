// Package placeholder resolves ${key} references against a property set.
package placeholder

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/magiconair/properties"
)

// Keys the caller always injects, whether or not the properties file exists.
const (
	HomeKey = "catalina.home"
	BaseKey = "catalina.base"
)

// Properties is an immutable key/value set loaded once per reconciliation pass.
type Properties struct {
	values map[string]string
}

// NewProperties copies values into a new set.
func NewProperties(values map[string]string) Properties {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Properties{values: cp}
}

// LoadProperties reads a Java properties file and injects the install home
// and base keys. A missing file yields only the injected keys. Values are
// kept raw: ${...} inside the file is not expanded here.
func LoadProperties(path, home, base string) (Properties, error) {
	values := map[string]string{}
	if path != "" {
		l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
		p, err := l.LoadFile(path)
		switch {
		case err == nil:
			values = p.Map()
		case errors.Is(err, os.ErrNotExist):
		default:
			return Properties{}, fmt.Errorf("load properties %s: %w", path, err)
		}
	}
	values[HomeKey] = home
	values[BaseKey] = base
	return Properties{values: values}, nil
}

// Get returns the value stored under key.
func (p Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the property keys in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of properties.
func (p Properties) Len() int { return len(p.values) }

// Resolve substitutes every ${key} with a known value. Unknown keys and
// unterminated references stay verbatim. Substituted text is not rescanned.
func Resolve(text string, props Properties) string {
	if !strings.Contains(text, "${") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	rest := text
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start + 2
		b.WriteString(rest[:start])
		key := rest[start+2 : end]
		if v, ok := props.Get(key); ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
	return b.String()
}

// HasPlaceholder reports whether text carries at least one ${...} reference.
func HasPlaceholder(text string) bool {
	i := strings.Index(text, "${")
	return i >= 0 && strings.IndexByte(text[i+2:], '}') >= 0
}

// Relativize replaces a leading install-base or install-home prefix with its
// placeholder so written paths stay relocatable. Base is tried first because
// an instance directory usually lives under the install directory.
func Relativize(value string, props Properties) string {
	for _, key := range []string{BaseKey, HomeKey} {
		prefix, ok := props.Get(key)
		if !ok || prefix == "" {
			continue
		}
		if value == prefix {
			return "${" + key + "}"
		}
		p := strings.TrimRight(prefix, `/\`)
		if p == "" {
			continue
		}
		if strings.HasPrefix(value, p) && len(value) > len(p) && (value[len(p)] == '/' || value[len(p)] == '\\') {
			return "${" + key + "}" + value[len(p):]
		}
	}
	return value
}
