package hgq

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Params is the key/value configuration store the allocator reads its
// settings from. Key lookup is case-insensitive, matching the collation used
// everywhere for group names. A Params is typically populated from a
// PoolBundle, but any string map will do.
type Params struct {
	values map[string]string
}

// NewParams builds a Params from a raw key/value map.
func NewParams(values map[string]string) *Params {
	p := &Params{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[strings.ToLower(k)] = v
	}
	return p
}

// Set stores a single key. Later Sets overwrite earlier ones.
func (p *Params) Set(key, value string) {
	p.values[strings.ToLower(key)] = value
}

// String returns the raw value for key and whether it was present.
func (p *Params) String(key string) (string, bool) {
	v, ok := p.values[strings.ToLower(key)]
	return v, ok
}

// Bool returns the boolean value for key, or def when the key is unset or
// malformed.
func (p *Params) Bool(key string, def bool) bool {
	raw, ok := p.String(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		logrus.Warnf("config: ignoring malformed boolean %s = %q", key, raw)
		return def
	}
	return v
}

// Double returns the numeric value for key, or def when the key is unset,
// malformed, or outside [lo, hi].
func (p *Params) Double(key string, def, lo, hi float64) float64 {
	raw, ok := p.String(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		logrus.Warnf("config: ignoring malformed number %s = %q", key, raw)
		return def
	}
	if v < lo || v > hi {
		logrus.Warnf("config: %s = %g outside [%g, %g], using default %g", key, v, lo, hi, def)
		return def
	}
	return v
}
