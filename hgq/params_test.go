package hgq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_CaseInsensitiveLookup(t *testing.T) {
	p := NewParams(map[string]string{"Group_Names": "a b"})
	v, ok := p.String("GROUP_NAMES")
	assert.True(t, ok)
	assert.Equal(t, "a b", v)

	_, ok = p.String("NO_SUCH_KEY")
	assert.False(t, ok)
}

func TestParams_Bool(t *testing.T) {
	p := NewParams(map[string]string{
		"yes":  "true",
		"no":   "FALSE",
		"junk": "maybe",
	})
	assert.True(t, p.Bool("yes", false))
	assert.False(t, p.Bool("no", true))
	assert.True(t, p.Bool("junk", true))
	assert.False(t, p.Bool("missing", false))
}

func TestParams_Double(t *testing.T) {
	p := NewParams(map[string]string{
		"quota":    "12.5",
		"negative": "-3",
		"huge":     "1e300",
		"junk":     "plenty",
	})
	assert.Equal(t, 12.5, p.Double("quota", -1, 0, 100))
	// Out-of-range and malformed values fall back to the default.
	assert.Equal(t, -1.0, p.Double("negative", -1, 0, 100))
	assert.Equal(t, -1.0, p.Double("huge", -1, 0, 100))
	assert.Equal(t, -1.0, p.Double("junk", -1, 0, 100))
	assert.Equal(t, 7.0, p.Double("missing", 7, 0, 100))
}

func TestParams_SetOverwrites(t *testing.T) {
	p := NewParams(nil)
	p.Set("KEY", "1")
	p.Set("key", "2")
	v, ok := p.String("Key")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}
