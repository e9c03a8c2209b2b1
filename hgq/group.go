package hgq

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// RootGroupName is the reserved name of the synthetic root group. User groups
// may not claim it (case-insensitive).
const RootGroupName = "<none>"

// precisionEps bounds the floating-point drift the engine tolerates silently:
// residual surplus after the allocation loops, rounding adjustments during
// remainder recovery, and the whole-slot threshold in round robin.
const precisionEps = 1e-5

// GroupEntry is one node of the quota tree. The whole allocator state is a
// tree of these rooted at the synthetic "<none>" group.
//
// ConfigQuota, StaticQuota, AcceptSurplus and Autoregroup come from
// configuration and survive across cycles. Requested, Usage and RRTime are
// injected by the caller before each cycle. Everything else is derived
// per-cycle state owned by the engine.
type GroupEntry struct {
	Name string

	ConfigQuota   float64
	StaticQuota   bool
	AcceptSurplus bool
	Autoregroup   bool

	Requested          float64
	CurrentlyRequested float64
	SubtreeRequested   float64
	Quota              float64
	SubtreeQuota       float64
	Allocated          float64
	Usage              float64

	RR            bool
	RRTime        float64
	SubtreeRRTime float64

	Sort    *SortRecord
	SortKey float64

	Parent   *GroupEntry
	Children []*GroupEntry

	// chmap maps a child's lower-cased short name to its position in
	// Children, avoiding quadratic lookup for groups with many children.
	chmap map[string]int
}

func newGroupEntry(name string) *GroupEntry {
	return &GroupEntry{Name: name, chmap: make(map[string]int)}
}

// child returns the child with the given short name, nil if absent.
// Comparison is case-insensitive.
func (g *GroupEntry) child(short string) *GroupEntry {
	i, ok := g.chmap[strings.ToLower(short)]
	if !ok {
		return nil
	}
	return g.Children[i]
}

func (g *GroupEntry) addChild(c *GroupEntry) {
	c.Parent = g
	g.Children = append(g.Children, c)
	g.chmap[strings.ToLower(shortName(c.Name))] = len(g.Children) - 1
}

// shortName returns the last component of a dotted group path.
func shortName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Tree is a constructed quota tree together with the lookup structures the
// negotiator iterates with. Groups is in breadth-first order, so a parent
// always precedes its children.
type Tree struct {
	Root   *GroupEntry
	Groups []*GroupEntry

	// GlobalAcceptSurplus and GlobalAutoregroup are true iff the pool-wide
	// default is true or any single group sets the flag true.
	GlobalAcceptSurplus bool
	GlobalAutoregroup   bool

	byName map[string]*GroupEntry
	params *Params
}

// Group returns the node for the given dotted group name, nil if unknown.
// The root is reachable under RootGroupName.
func (t *Tree) Group(name string) *GroupEntry {
	return t.byName[strings.ToLower(name)]
}

// splitGroupList splits the GROUP_NAMES value on whitespace and commas.
func splitGroupList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// ConstructTree builds the quota tree from configuration. It reads the group
// name list, places each group under its parent path, and fills in per-group
// quota and policy settings. Group names with a missing parent, duplicate
// names, and names claiming the reserved root token are skipped with a
// warning. The only hard failure is a missing or unparseable GROUP_SORT_EXPR.
func ConstructTree(p *Params) (*Tree, error) {
	var groups []string
	if raw, ok := p.String("GROUP_NAMES"); ok {
		for _, gname := range splitGroupList(raw) {
			if strings.EqualFold(gname, RootGroupName) {
				logrus.Warnf("group quotas: group name %q is reserved for the root group, ignoring", gname)
				continue
			}
			groups = append(groups, gname)
		}
	}

	// Case-insensitive sort guarantees a parent path appears before any of
	// its children, so insertion can assume parents already exist.
	sort.Slice(groups, func(i, j int) bool {
		return strings.ToLower(groups[i]) < strings.ToLower(groups[j])
	})

	root := newGroupEntry(RootGroupName)
	root.AcceptSurplus = true

	t := &Tree{
		Root:   root,
		byName: map[string]*GroupEntry{strings.ToLower(RootGroupName): root},
		params: p,
	}

	defaultAcceptSurplus := p.Bool("GROUP_ACCEPT_SURPLUS", false)
	defaultAutoregroup := p.Bool("GROUP_AUTOREGROUP", false)
	t.GlobalAcceptSurplus = defaultAcceptSurplus
	t.GlobalAutoregroup = defaultAutoregroup

	for _, gname := range groups {
		gpath := strings.Split(gname, ".")

		// Walk the parent path; every intermediate component must already
		// have been inserted.
		parent := root
		missing := false
		for _, comp := range gpath[:len(gpath)-1] {
			next := parent.child(comp)
			if next == nil {
				logrus.Warnf("group quotas: ignoring group name %s with missing parent %s", gname, comp)
				missing = true
				break
			}
			parent = next
		}
		if missing {
			continue
		}
		if parent.child(gpath[len(gpath)-1]) != nil {
			logrus.Warnf("group quotas: ignoring duplicate group name %s", gname)
			continue
		}

		group := newGroupEntry(gname)
		parent.addChild(group)
		t.byName[strings.ToLower(gname)] = group

		// Static quota takes precedence; otherwise a dynamic share in [0,1];
		// otherwise zero.
		quota := p.Double("GROUP_QUOTA_"+gname, -1.0, 0, math.MaxInt32)
		if quota >= 0 {
			group.ConfigQuota = quota
			group.StaticQuota = true
		} else {
			quota = p.Double("GROUP_QUOTA_DYNAMIC_"+gname, -1.0, 0.0, 1.0)
			if quota >= 0 {
				group.ConfigQuota = quota
				group.StaticQuota = false
			} else {
				logrus.Warnf("group quotas: no quota specified for group %q, defaulting to zero", gname)
				group.ConfigQuota = 0.0
				group.StaticQuota = false
			}
		}
		if group.ConfigQuota < 0 {
			logrus.Warnf("group quotas: negative quota (%g) defaulting to zero", group.ConfigQuota)
			group.ConfigQuota = 0
		}

		group.AcceptSurplus = p.Bool("GROUP_ACCEPT_SURPLUS_"+gname, defaultAcceptSurplus)
		group.Autoregroup = p.Bool("GROUP_AUTOREGROUP_"+gname, defaultAutoregroup)
		if group.AcceptSurplus {
			t.GlobalAcceptSurplus = true
		}
		if group.Autoregroup {
			t.GlobalAutoregroup = true
		}
	}

	// The root's autoregroup state mirrors the effective global value, so
	// downstream accounting sees a coherent flag at the root.
	root.Autoregroup = t.GlobalAutoregroup

	// Breadth-first order for iteration that needs parents before children.
	queue := []*GroupEntry{root}
	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]
		t.Groups = append(t.Groups, group)
		queue = append(queue, group.Children...)
	}

	sortExpr, ok := p.String("GROUP_SORT_EXPR")
	if !ok {
		return nil, fmt.Errorf("no value for GROUP_SORT_EXPR")
	}
	prog, err := compileSortExpr(sortExpr)
	if err != nil {
		return nil, err
	}
	for _, group := range t.Groups {
		group.Sort = &SortRecord{
			AccountingGroup: group.Name,
			SortExpr:        sortExpr,
			prog:            prog,
		}
	}
	return t, nil
}
