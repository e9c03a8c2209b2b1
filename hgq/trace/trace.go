// Package trace provides allocation-trace recording for offline analysis of
// quota decisions. It stores pure data types and has no dependency on hgq.
package trace

// Level controls the verbosity of allocation tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelCycles captures per-node quota and allocation records for every
	// cycle, plus the cycle summary.
	LevelCycles Level = "cycles"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone:   true,
	LevelCycles: true,
	"":          true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// Config controls trace collection behavior.
type Config struct {
	Level Level
}

// AllocationTrace collects quota and allocation records during a cycle.
type AllocationTrace struct {
	Config      Config
	Quotas      []QuotaRecord
	Allocations []AllocationRecord
	Summary     CycleSummary
}

// New creates an AllocationTrace ready for recording.
func New(config Config) *AllocationTrace {
	return &AllocationTrace{
		Config:      config,
		Quotas:      make([]QuotaRecord, 0),
		Allocations: make([]AllocationRecord, 0),
	}
}

// Enabled reports whether per-node records should be collected.
func (at *AllocationTrace) Enabled() bool {
	return at != nil && at.Config.Level == LevelCycles
}

// RecordQuota appends a quota assignment record.
func (at *AllocationTrace) RecordQuota(record QuotaRecord) {
	at.Quotas = append(at.Quotas, record)
}

// RecordAllocation appends a final allocation record.
func (at *AllocationTrace) RecordAllocation(record AllocationRecord) {
	at.Allocations = append(at.Allocations, record)
}
