package hgq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams builds a Params for tests, defaulting the sort expression so
// construction succeeds unless a test overrides it.
func testParams(kv map[string]string) *Params {
	if _, ok := kv["GROUP_SORT_EXPR"]; !ok {
		kv["GROUP_SORT_EXPR"] = "GroupQuota"
	}
	return NewParams(kv)
}

func TestConstructTree_EmptyConfig(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, RootGroupName, tree.Root.Name)
	assert.True(t, tree.Root.AcceptSurplus)
	assert.Len(t, tree.Groups, 1)
	assert.Same(t, tree.Root, tree.Group("<none>"))
}

func TestConstructTree_Hierarchy(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES":                "physics, physics.chem, physics.bio, astro",
		"GROUP_QUOTA_physics":        "40",
		"GROUP_QUOTA_physics.chem":   "10",
		"GROUP_QUOTA_DYNAMIC_astro":  "0.5",
		"GROUP_ACCEPT_SURPLUS_astro": "true",
	}))
	require.NoError(t, err)

	physics := tree.Group("physics")
	require.NotNil(t, physics)
	assert.Same(t, tree.Root, physics.Parent)
	assert.Len(t, physics.Children, 2)

	chem := tree.Group("physics.chem")
	require.NotNil(t, chem)
	assert.Same(t, physics, chem.Parent)
	assert.True(t, chem.StaticQuota)
	assert.Equal(t, 10.0, chem.ConfigQuota)

	astro := tree.Group("astro")
	require.NotNil(t, astro)
	assert.False(t, astro.StaticQuota)
	assert.Equal(t, 0.5, astro.ConfigQuota)
	assert.True(t, astro.AcceptSurplus)
	assert.True(t, tree.GlobalAcceptSurplus)
	assert.False(t, tree.GlobalAutoregroup)
}

func TestConstructTree_BreadthFirstOrder(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES": "a a.x a.x.deep b b.y",
	}))
	require.NoError(t, err)

	seen := map[string]int{}
	for i, g := range tree.Groups {
		seen[strings.ToLower(g.Name)] = i
	}
	// Every parent precedes its children.
	for _, g := range tree.Groups[1:] {
		assert.Less(t, seen[strings.ToLower(g.Parent.Name)], seen[strings.ToLower(g.Name)],
			"parent of %s should precede it", g.Name)
	}
	assert.Equal(t, 0, seen["<none>"])
	assert.Len(t, tree.Groups, 6)
}

func TestConstructTree_MissingParentSkipped(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES": "a.b.c",
	}))
	require.NoError(t, err)
	assert.Len(t, tree.Groups, 1)
	assert.Nil(t, tree.Group("a.b.c"))
}

func TestConstructTree_DuplicateSkipped(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES":   "a A",
		"GROUP_QUOTA_a": "5",
	}))
	require.NoError(t, err)
	// Case-insensitive duplicate collapses to one group.
	assert.Len(t, tree.Groups, 2)
}

func TestConstructTree_ReservedRootNameSkipped(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES": "<none> a",
	}))
	require.NoError(t, err)
	assert.Len(t, tree.Groups, 2)
	assert.NotNil(t, tree.Group("a"))
}

func TestConstructTree_QuotaPrecedence(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES":           "a b c d",
		"GROUP_QUOTA_a":         "12",
		"GROUP_QUOTA_DYNAMIC_a": "0.9", // ignored: static takes precedence
		"GROUP_QUOTA_DYNAMIC_b": "0.25",
		"GROUP_QUOTA_c":         "-3",  // out of range, falls through
		"GROUP_QUOTA_DYNAMIC_c": "1.5", // out of range too: defaults to zero
	}))
	require.NoError(t, err)

	a := tree.Group("a")
	assert.True(t, a.StaticQuota)
	assert.Equal(t, 12.0, a.ConfigQuota)

	b := tree.Group("b")
	assert.False(t, b.StaticQuota)
	assert.Equal(t, 0.25, b.ConfigQuota)

	c := tree.Group("c")
	assert.False(t, c.StaticQuota)
	assert.Zero(t, c.ConfigQuota)

	d := tree.Group("d")
	assert.False(t, d.StaticQuota)
	assert.Zero(t, d.ConfigQuota)
}

func TestConstructTree_PolicyDefaults(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES":            "a b",
		"GROUP_ACCEPT_SURPLUS":   "true",
		"GROUP_ACCEPT_SURPLUS_b": "false",
		"GROUP_AUTOREGROUP_b":    "true",
	}))
	require.NoError(t, err)

	assert.True(t, tree.Group("a").AcceptSurplus)
	assert.False(t, tree.Group("b").AcceptSurplus)
	assert.True(t, tree.Group("b").Autoregroup)
	assert.True(t, tree.GlobalAcceptSurplus)
	assert.True(t, tree.GlobalAutoregroup)
	// Root mirrors the effective global autoregroup value.
	assert.True(t, tree.Root.Autoregroup)
}

func TestConstructTree_MissingSortExprFatal(t *testing.T) {
	_, err := ConstructTree(NewParams(map[string]string{
		"GROUP_NAMES": "a",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROUP_SORT_EXPR")
}

func TestConstructTree_BadSortExprFatal(t *testing.T) {
	_, err := ConstructTree(NewParams(map[string]string{
		"GROUP_NAMES":     "a",
		"GROUP_SORT_EXPR": "1 +* 2",
	}))
	require.Error(t, err)
}

func TestConstructTree_SortRecordsAssigned(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES": "a a.b",
	}))
	require.NoError(t, err)
	for _, g := range tree.Groups {
		require.NotNil(t, g.Sort, "group %s missing sort record", g.Name)
		assert.Equal(t, g.Name, g.Sort.AccountingGroup)
		assert.Equal(t, "GroupQuota", g.Sort.SortExpr)
	}
}

func TestChildIndex_Consistency(t *testing.T) {
	tree, err := ConstructTree(testParams(map[string]string{
		"GROUP_NAMES": "p p.a p.b p.c",
	}))
	require.NoError(t, err)

	p := tree.Group("p")
	require.Len(t, p.Children, 3)
	for i, c := range p.Children {
		assert.Equal(t, i, p.chmap[strings.ToLower(shortName(c.Name))])
		assert.Same(t, c, p.child(shortName(c.Name)))
		assert.Same(t, c, p.child(strings.ToUpper(shortName(c.Name))))
		assert.Same(t, p, c.Parent)
	}
}

func TestSplitGroupList(t *testing.T) {
	assert.Equal(t, []string{"a", "b.c", "d"}, splitGroupList("a, b.c\td"))
	assert.Empty(t, splitGroupList("  ,, "))
}
