package hgq

import (
	"math"

	"github.com/sirupsen/logrus"
)

// fairshare matches demand against quota bottom-up and returns the surplus
// (unused quota) produced by the subtree rooted at g. Surplus cascades up one
// level at a time: after the children report theirs, allocateSurplus
// redistributes the pooled surplus across this subtree before the rest is
// passed further up.
func (g *GroupEntry) fairshare() float64 {
	logrus.Debugf("group quotas: fairshare (1): group= %s  quota= %g  requested= %g", g.Name, g.Quota, g.Requested)

	// Allocate whichever is smallest: the requested slots or group quota.
	g.Allocated = math.Min(g.Requested, g.Quota)

	g.Requested -= g.Allocated
	g.SubtreeRequested = g.Requested

	surplus := g.Quota - g.Allocated

	logrus.Debugf("group quotas: fairshare (2): group= %s  quota= %g  allocated= %g  requested= %g", g.Name, g.Quota, g.Allocated, g.Requested)

	if len(g.Children) == 0 {
		return surplus
	}

	for _, child := range g.Children {
		surplus += child.fairshare()
		if child.AcceptSurplus {
			g.SubtreeRequested += child.SubtreeRequested
		}
	}

	surplus = g.allocateSurplus(surplus)

	logrus.Debugf("group quotas: fairshare (3): group= %s  surplus= %g  subtree_requested= %g", g.Name, surplus, g.SubtreeRequested)

	return surplus
}

// allocateSurplus distributes surplus across this node and its children and
// returns whatever could not be placed. The node competes with its own
// children on equal footing: it is spliced into the participant list as the
// last element, temporarily dressed up as a child that accepts surplus, with
// its own demand standing in for subtree demand. All mutated fields are
// restored before returning.
func (g *GroupEntry) allocateSurplus(surplus float64) float64 {
	logrus.Debugf("group quotas: allocate-surplus (1): group= %s  surplus= %g  subtree-requested= %g", g.Name, surplus, g.SubtreeRequested)

	if surplus <= 0 {
		return 0
	}
	if g.SubtreeRequested <= 0 {
		return surplus
	}

	groups := make([]*GroupEntry, 0, len(g.Children)+1)
	groups = append(groups, g.Children...)
	groups = append(groups, g)

	// Allocations accumulate here first; recursive calls happen only after
	// competition at this level settles, keeping them to a minimum.
	allocated := make([]float64, len(groups))

	saveAcceptSurplus := g.AcceptSurplus
	g.AcceptSurplus = true
	saveSubtreeQuota := g.SubtreeQuota
	g.SubtreeQuota = g.Quota
	requested := g.SubtreeRequested
	g.SubtreeRequested = g.Requested

	if surplus >= requested {
		// Enough surplus to satisfy every request outright.
		logrus.Debugf("group quotas: allocate-surplus (2a): direct allocation, group= %s  requested= %g  surplus= %g", g.Name, requested, surplus)

		for j, grp := range groups {
			if grp.AcceptSurplus && grp.SubtreeRequested > 0 {
				allocated[j] = grp.SubtreeRequested
			}
		}
		surplus -= requested
		requested = 0
	} else {
		// More demand than surplus: groups compete, first weighted by their
		// subtree quotas, then uniformly for anything left.
		logrus.Debugf("group quotas: allocate-surplus (2b): quota-based allocation, group= %s  requested= %g  surplus= %g", g.Name, requested, surplus)

		subtreeRequested := make([]float64, len(groups))
		for j, grp := range groups {
			if grp.AcceptSurplus && grp.SubtreeRequested > 0 {
				subtreeRequested[j] = grp.SubtreeRequested
			}
		}

		surplus, requested = allocateSurplusLoop(true, groups, allocated, subtreeRequested, surplus, requested)
		surplus, requested = allocateSurplusLoop(false, groups, allocated, subtreeRequested, surplus, requested)

		if surplus > precisionEps {
			logrus.Warnf("group quotas: allocate-surplus: nonzero surplus %g after allocation", surplus)
		}
	}

	// Only actual children get recursive allocation; the spliced-in parent
	// slot is folded into this node directly below.
	for j := 0; j < len(groups)-1; j++ {
		if allocated[j] > 0 {
			if s := groups[j].allocateSurplus(allocated[j]); math.Abs(s) > precisionEps {
				logrus.Warnf("group quotas: allocate-surplus (3): surplus= %g", s)
			}
		}
	}

	g.Allocated += allocated[len(allocated)-1]
	g.Requested -= allocated[len(allocated)-1]

	logrus.Debugf("group quotas: allocate-surplus (4): group %s allocated surplus= %g  allocated= %g  requested= %g", g.Name, allocated[len(allocated)-1], g.Allocated, g.Requested)

	g.SubtreeRequested = requested
	g.AcceptSurplus = saveAcceptSurplus
	g.SubtreeQuota = saveSubtreeQuota

	return surplus
}

// allocateSurplusLoop runs one competition pass over the participant vector,
// weighted by subtree quota when byQuota is set and uniformly otherwise. Each
// iteration splits the surplus over outstanding participants in weight
// proportion, clipping to remaining demand. Convergence: either nothing was
// clipped (all surplus placed) or at least one participant's demand hit zero,
// shrinking the normalizer toward the halt condition.
func allocateSurplusLoop(byQuota bool, groups []*GroupEntry, allocated, subtreeRequested []float64, surplus, requested float64) (float64, float64) {
	iter := 0
	for surplus > 0 {
		iter++

		logrus.Debugf("group quotas: allocate-surplus-loop: by_quota= %v  iteration= %d  requested= %g  surplus= %g", byQuota, iter, requested, surplus)

		var z float64
		for j, grp := range groups {
			if subtreeRequested[j] > 0 {
				if byQuota {
					z += grp.SubtreeQuota
				} else {
					z += 1
				}
			}
		}
		if z <= 0 {
			logrus.Debugf("group quotas: allocate-surplus-loop: no further outstanding groups at iteration %d - halting", iter)
			break
		}

		neverGt := true
		var sumalloc float64
		for j, grp := range groups {
			if subtreeRequested[j] <= 0 {
				continue
			}
			n := 1.0
			if byQuota {
				n = grp.SubtreeQuota
			}
			a := surplus * (n / z)
			if a > subtreeRequested[j] {
				a = subtreeRequested[j]
				neverGt = false
			}
			allocated[j] += a
			subtreeRequested[j] -= a
			sumalloc += a
		}

		surplus -= sumalloc
		requested -= sumalloc

		// If nothing was clipped, all surplus was placed this iteration; a
		// negative surplus means precision jitter ate the rest. Either way
		// the pass is done.
		if neverGt || surplus < 0 {
			if math.Abs(surplus) > precisionEps {
				logrus.Warnf("group quotas: allocate-surplus-loop: rounding surplus= %g to zero", surplus)
			}
			surplus = 0
		}
	}
	return surplus, requested
}
