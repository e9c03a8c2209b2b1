package hgq

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// roundForPrecision rounds x to the nearest integer and returns it, warning
// when the adjustment is larger than accumulated floating-point drift should
// ever produce.
func roundForPrecision(x float64) float64 {
	rounded := math.Floor(0.5 + x)
	if err := math.Abs(rounded - x); err > precisionEps {
		logrus.Warnf("group quotas: encountered precision error of %g", err)
	}
	return rounded
}

// recoverRemainders strips the fractional part of every allocation, turning
// it back into demand plus pooled surplus, and re-serves the whole slots by
// round robin. Returns the surplus this subtree could not place.
func (g *GroupEntry) recoverRemainders() float64 {
	logrus.Debugf("group quotas: recover-remainders (1): group= %s  allocated= %g  requested= %g", g.Name, g.Allocated, g.Requested)

	surplus := g.Allocated - math.Floor(g.Allocated)
	g.Allocated -= surplus
	g.Requested += surplus

	// Integer values from here on; rounding corrects any precision drift.
	g.Allocated = roundForPrecision(g.Allocated)
	g.Requested = roundForPrecision(g.Requested)

	g.SubtreeRequested = g.Requested
	if g.Requested > 0 {
		g.SubtreeRRTime = g.RRTime
	} else {
		g.SubtreeRRTime = math.MaxFloat64
	}

	logrus.Debugf("group quotas: recover-remainders (2): group= %s  allocated= %g  requested= %g  surplus= %g", g.Name, g.Allocated, g.Requested, surplus)

	if len(g.Children) == 0 {
		return surplus
	}

	for _, child := range g.Children {
		surplus += child.recoverRemainders()
		if child.AcceptSurplus {
			g.SubtreeRequested += child.SubtreeRequested
			if child.SubtreeRequested > 0 {
				g.SubtreeRRTime = math.Min(g.SubtreeRRTime, child.SubtreeRRTime)
			}
		}
	}

	surplus = g.roundRobin(surplus)

	logrus.Debugf("group quotas: recover-remainders (3): group= %s  surplus= %g  subtree_requested= %g", g.Name, surplus, g.SubtreeRequested)

	return surplus
}

// roundRobin doles whole surplus slots to this node and its children in
// ascending rr-time order (oldest served first, ties by child position) and
// returns whatever cannot be placed. As in allocateSurplus, the node itself
// competes as the last participant with its fields transiently overridden.
func (g *GroupEntry) roundRobin(surplus float64) float64 {
	logrus.Debugf("group quotas: round-robin (1): group= %s  surplus= %g  subtree-requested= %g", g.Name, surplus, g.SubtreeRequested)

	// These are expected to be integer values by now.
	if g.SubtreeRequested != math.Floor(g.SubtreeRequested) {
		logrus.Warnf("group quotas: forcing group %s requested= %g to integer value %g", g.Name, g.SubtreeRequested, math.Floor(g.SubtreeRequested))
		g.SubtreeRequested = math.Floor(g.SubtreeRequested)
	}

	if g.SubtreeRequested <= 0 {
		return surplus
	}
	// Nothing to do without at least one whole slot. Recovered fractions that
	// fall short of a whole slot only by precision drift still count as one.
	if surplus < 1-precisionEps {
		return surplus
	}

	groups := make([]*GroupEntry, 0, len(g.Children)+1)
	groups = append(groups, g.Children...)
	groups = append(groups, g)

	allocated := make([]float64, len(groups))

	saveAcceptSurplus := g.AcceptSurplus
	g.AcceptSurplus = true
	saveSubtreeQuota := g.SubtreeQuota
	g.SubtreeQuota = g.Quota
	saveSubtreeRRTime := g.SubtreeRRTime
	g.SubtreeRRTime = g.RRTime
	requested := g.SubtreeRequested
	g.SubtreeRequested = g.Requested

	outstanding := 0.0
	subtreeRequested := make([]float64, len(groups))
	for j, grp := range groups {
		if grp.AcceptSurplus && grp.SubtreeRequested > 0 {
			subtreeRequested[j] = grp.SubtreeRequested
			outstanding++
		}
	}

	// Indirect sort by rr time decides who gets first cut; ties keep the
	// child-vector order.
	idx := make([]int, len(groups))
	for j := range idx {
		idx[j] = j
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return groups[idx[a]].SubtreeRRTime < groups[idx[b]].SubtreeRRTime
	})

	for surplus >= 1-precisionEps && requested > 0 {
		// Most we can fairly hand any one group this round.
		amax := math.Max(1, math.Floor(surplus/outstanding))

		logrus.Debugf("group quotas: round-robin (2): pass: surplus= %g  requested= %g  outstanding= %g  amax= %g", surplus, requested, outstanding, amax)

		outstanding = 0
		var sumalloc float64
		for _, j := range idx {
			grp := groups[j]
			if !grp.AcceptSurplus || subtreeRequested[j] <= 0 {
				continue
			}
			a := math.Min(subtreeRequested[j], amax)
			allocated[j] += a
			subtreeRequested[j] -= a
			sumalloc += a
			surplus -= a
			requested -= a
			grp.RR = true
			if subtreeRequested[j] > 0 {
				outstanding++
			}
			if surplus < amax {
				break
			}
		}

		// Should not be possible; guards against a stuck loop under
		// arithmetic pathology.
		if sumalloc < 1 {
			logrus.Warnf("group quotas: round-robin failed to allocate >= 1 slot this round - halting")
			break
		}
	}

	for j := 0; j < len(groups)-1; j++ {
		if allocated[j] > 0 {
			// Every slot handed down was requested below, so the recursive
			// calls are expected to place all of it.
			if s := groups[j].roundRobin(allocated[j]); s > 0 {
				logrus.Warnf("group quotas: round-robin: nonzero surplus %g returned from round robin for group %s", s, groups[j].Name)
			}
		}
	}

	g.Allocated += allocated[len(allocated)-1]
	g.Requested -= allocated[len(allocated)-1]

	logrus.Debugf("group quotas: round-robin (5): group %s allocated surplus= %g  allocated= %g  requested= %g", g.Name, allocated[len(allocated)-1], g.Allocated, g.Requested)

	g.SubtreeRequested = requested
	g.AcceptSurplus = saveAcceptSurplus
	g.SubtreeQuota = saveSubtreeQuota
	g.SubtreeRRTime = saveSubtreeRRTime

	return surplus
}
