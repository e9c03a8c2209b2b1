// Package hgq implements the hierarchical group quota allocator: the
// accounting engine that divides a finite pool of identical slots among a
// tree of named groups, each with a configured quota, demand, and policy.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - group.go: the GroupEntry node, tree construction from configuration
//   - cycle.go: the allocation cycle driver and the demand/result interface
//   - fairshare.go: demand-vs-quota matching and surplus redistribution
//
// # Allocation Phases
//
// A cycle runs four phases in order, each to completion:
//  1. ConstructTree parses dotted group names into a rooted tree and reads
//     per-group quota and policy settings (once per configuration).
//  2. assignQuotas distributes the pool down the tree: static quotas claim
//     first, dynamic shares split the remainder, the root keeps the residue.
//  3. fairshare matches demand against quota bottom-up and cascades unused
//     quota (surplus) to siblings that accept it.
//  4. recoverRemainders converts fractional residues into whole slots,
//     served round-robin in last-served order.
//
// Tree.RunCycle runs phases 2 to 4 for one pool size.
//
// The engine is single-threaded and deterministic: identical inputs produce
// identical allocations. Callers serialize cycles; the tree is never safe to
// mutate while a cycle runs.
//
// Sub-package hgq/trace records per-cycle allocation decisions as pure data
// for offline analysis.
package hgq
