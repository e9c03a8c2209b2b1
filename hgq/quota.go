package hgq

import (
	"math"

	"github.com/sirupsen/logrus"
)

// assignQuotas distributes quota down the subtree rooted at g. The value
// passed in is the quota for the entire subtree. Static child quotas claim
// first, dynamic children share the remainder in proportion to their
// configured fractions, and g itself keeps whatever is left — except under
// oversubscription, where g keeps the full subtree budget and children may
// collectively over-claim.
func (g *GroupEntry) assignQuotas(quota float64, oversub bool) {
	logrus.Debugf("group quotas: subtree %s receiving quota= %g", g.Name, quota)

	// A zero budget leaves the whole subtree at its default of zero.
	if quota <= 0 {
		return
	}

	g.SubtreeQuota = quota

	var sqsum, dqsum float64
	for _, child := range g.Children {
		if child.StaticQuota {
			sqsum += child.ConfigQuota
		} else {
			dqsum += child.ConfigQuota
		}
	}

	// Static quotas get first dibs; unless oversubscription is allowed, the
	// static budget is bounded by the quota coming from above.
	sqa := sqsum
	if !oversub {
		sqa = math.Min(sqsum, quota)
	}

	// Dynamic children split the remainder.
	dqa := math.Max(0, quota-sqa)

	logrus.Debugf("group quotas: group %s, allocated %g for static children, %g for dynamic children", g.Name, sqa, dqa)

	// Guard against 0/0 when all static quotas are zero.
	zs := sqsum
	if zs <= 0 {
		zs = 1
	}
	// Dynamic shares summing above 1 get rescaled to sum to 1; shares summing
	// below 1 are taken as-is.
	zd := math.Max(dqsum, 1)

	var chq float64
	for _, child := range g.Children {
		var q float64
		if child.StaticQuota {
			q = child.ConfigQuota * (sqa / zs)
		} else {
			q = child.ConfigQuota * (dqa / zd)
		}
		if q < 0 {
			q = 0
		}

		if child.StaticQuota && q < child.ConfigQuota {
			logrus.Warnf("group quotas: static quota for group %s rescaled from %g to %g", child.Name, child.ConfigQuota, q)
		} else if zd-1 > 0.0001 {
			logrus.Warnf("group quotas: dynamic quota for group %s rescaled from %g to %g", child.Name, child.ConfigQuota, child.ConfigQuota/zd)
		}

		child.assignQuotas(q, oversub)
		chq += q
	}

	if oversub {
		g.Quota = quota
	} else {
		g.Quota = quota - chq
	}

	// The root's own quota is always the residue. Its "quota" acts as the
	// usage limit at exactly the root node; leaving it at the whole pool
	// would double-count surplus slots when demand is compared against it.
	if g.Parent == nil {
		g.Quota = quota - chq
	}

	if g.Quota < 0 {
		g.Quota = 0
	}
	logrus.Debugf("group quotas: group %s assigned quota= %g", g.Name, g.Quota)
}
