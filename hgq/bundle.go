package hgq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hgq-alloc/hgq-alloc/hgq/trace"
)

// PoolBundle holds one pool's allocator inputs, loadable from a YAML file:
// the raw configuration params, the pool size, and per-group demand for a
// single cycle.
type PoolBundle struct {
	Pool   float64                 `yaml:"pool"`
	Params map[string]string       `yaml:"params"`
	Demand map[string]DemandConfig `yaml:"demand"`
	Trace  string                  `yaml:"trace"`
}

// DemandConfig holds one group's demand inputs.
type DemandConfig struct {
	Requested float64 `yaml:"requested"`
	Usage     float64 `yaml:"usage"`
	RRTime    float64 `yaml:"rr_time"`
}

// LoadPoolBundle reads and parses a YAML pool configuration file.
func LoadPoolBundle(path string) (*PoolBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pool config: %w", err)
	}
	var bundle PoolBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing pool config: %w", err)
	}
	return &bundle, nil
}

// Validate checks value ranges in the bundle before any allocation runs.
func (b *PoolBundle) Validate() error {
	if b.Pool < 0 {
		return fmt.Errorf("pool size %g is negative", b.Pool)
	}
	if !trace.IsValidLevel(b.Trace) {
		return fmt.Errorf("unknown trace level %q", b.Trace)
	}
	for name, d := range b.Demand {
		if d.Requested < 0 {
			return fmt.Errorf("group %s: requested %g is negative", name, d.Requested)
		}
		if d.Usage < 0 {
			return fmt.Errorf("group %s: usage %g is negative", name, d.Usage)
		}
	}
	return nil
}

// BuildParams assembles the config store the tree builder reads from.
func (b *PoolBundle) BuildParams() *Params {
	return NewParams(b.Params)
}

// BuildDemand assembles the per-group demand map for InjectDemand.
func (b *PoolBundle) BuildDemand() map[string]Demand {
	demand := make(map[string]Demand, len(b.Demand))
	for name, d := range b.Demand {
		demand[name] = Demand{Requested: d.Requested, Usage: d.Usage, RRTime: d.RRTime}
	}
	return demand
}
