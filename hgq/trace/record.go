package trace

// QuotaRecord captures one node's quota assignment after the quota phase.
type QuotaRecord struct {
	Group        string
	ConfigQuota  float64
	Static       bool
	SubtreeQuota float64
	Quota        float64
}

// AllocationRecord captures one node's final allocation after a cycle.
type AllocationRecord struct {
	Group      string
	Requested  float64 // demand at cycle start
	Allocated  float64 // integral after remainder recovery
	RoundRobin bool    // node received a round-robin slot this cycle
}

// CycleSummary captures pool-level accounting for one cycle.
type CycleSummary struct {
	Pool            float64
	TotalRequested  float64
	TotalAllocated  float64
	ResidualSurplus float64 // surplus left at the root after round robin
}
