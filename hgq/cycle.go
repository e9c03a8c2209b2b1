package hgq

import (
	"github.com/sirupsen/logrus"

	"github.com/hgq-alloc/hgq-alloc/hgq/trace"
)

// Demand is the per-group input to one allocation cycle.
type Demand struct {
	Requested float64 // slots demanded at this group alone
	Usage     float64 // currently observed usage
	RRTime    float64 // cycle time this group last received a round-robin slot
}

// GroupResult is the per-group output of one allocation cycle.
type GroupResult struct {
	Name       string
	Quota      float64
	Requested  float64 // demand at cycle start
	Allocated  float64 // integral slot count
	RoundRobin bool
	SortKey    float64
}

// InjectDemand writes per-group demand into the tree ahead of a cycle.
// Unknown group names are skipped with a warning; groups absent from the map
// keep whatever demand fields they already carry.
func (t *Tree) InjectDemand(demand map[string]Demand) {
	for name, d := range demand {
		group := t.Group(name)
		if group == nil {
			logrus.Warnf("group quotas: ignoring demand for unknown group %q", name)
			continue
		}
		group.Requested = d.Requested
		group.Usage = d.Usage
		group.RRTime = d.RRTime
	}
}

// RunCycle performs one full allocation cycle over the tree: reset derived
// state, assign quotas top-down, fair-share demand against quota, then
// recover fractional remainders into whole round-robin slots. After it
// returns, every node's Allocated holds a nonnegative integer. The cycle
// never fails; all numerical anomalies are warned about and survived.
//
// When tr is non-nil and enabled, per-node quota and allocation records plus
// the cycle summary are recorded into it.
func (t *Tree) RunCycle(pool float64, tr *trace.AllocationTrace) {
	oversub := t.params.Bool("NEGOTIATOR_ALLOW_QUOTA_OVERSUBSCRIPTION", false)

	var totalRequested float64
	for _, group := range t.Groups {
		group.Quota = 0
		group.SubtreeQuota = 0
		group.Allocated = 0
		group.SubtreeRequested = 0
		group.RR = false
		group.SubtreeRRTime = 0
		group.SortKey = 0
		group.CurrentlyRequested = group.Requested
		totalRequested += group.Requested
	}

	logrus.Debugf("group quotas: cycle start: pool= %g  total requested= %g  oversubscription= %v", pool, totalRequested, oversub)

	t.Root.assignQuotas(pool, oversub)
	if tr.Enabled() {
		for _, group := range t.Groups {
			tr.RecordQuota(trace.QuotaRecord{
				Group:        group.Name,
				ConfigQuota:  group.ConfigQuota,
				Static:       group.StaticQuota,
				SubtreeQuota: group.SubtreeQuota,
				Quota:        group.Quota,
			})
		}
	}

	surplus := t.Root.fairshare()
	logrus.Debugf("group quotas: fairshare left surplus= %g at the root", surplus)

	// Unplaced slots: quota no demand could use, plus any remainder the
	// round-robin phase could not re-serve.
	residual := surplus + t.Root.recoverRemainders()
	logrus.Debugf("group quotas: cycle end: residual surplus= %g", residual)

	t.evalSortKeys()

	if tr.Enabled() {
		var totalAllocated float64
		for _, group := range t.Groups {
			totalAllocated += group.Allocated
			tr.RecordAllocation(trace.AllocationRecord{
				Group:      group.Name,
				Requested:  group.CurrentlyRequested,
				Allocated:  group.Allocated,
				RoundRobin: group.RR,
			})
		}
		tr.Summary = trace.CycleSummary{
			Pool:            pool,
			TotalRequested:  totalRequested,
			TotalAllocated:  totalAllocated,
			ResidualSurplus: residual,
		}
	}
}

// evalSortKeys refreshes every node's sort key from the configured sort
// expression. Evaluation failures warn and leave the key at zero; the sort
// key is reporting-only state and never fails a cycle.
func (t *Tree) evalSortKeys() {
	for _, group := range t.Groups {
		key, err := group.Sort.Eval(map[string]any{
			AttrGroupQuota:     group.Quota,
			AttrGroupUsage:     group.Usage,
			AttrGroupRequested: group.CurrentlyRequested,
		})
		if err != nil {
			logrus.Warnf("group quotas: %v", err)
			continue
		}
		group.SortKey = key
	}
}

// Results returns the per-group outcome of the last cycle in breadth-first
// order, root first.
func (t *Tree) Results() []GroupResult {
	results := make([]GroupResult, 0, len(t.Groups))
	for _, group := range t.Groups {
		results = append(results, GroupResult{
			Name:       group.Name,
			Quota:      group.Quota,
			Requested:  group.CurrentlyRequested,
			Allocated:  group.Allocated,
			RoundRobin: group.RR,
			SortKey:    group.SortKey,
		})
	}
	return results
}
