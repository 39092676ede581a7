// Package layout implements profile-guided basic block layout.
//
// Given weighted control-flow graphs from [cfg], the package groups hot blocks
// into chains and orders them to maximize a locality score. Short forward
// jumps, short backward jumps and, above all, fallthroughs between adjacent
// blocks are rewarded.
//
// # Scoring
//
// A [Scorer] assigns each edge a score from its weight and the signed distance
// between the end of its source block and the start of its sink block:
//
//	fallthrough (distance 0):  weight * FallthroughWeight * ForwardJumpDistance * BackwardJumpDistance
//	forward (0 <= d < fwd):    weight * ForwardJumpWeight * BackwardJumpDistance * (ForwardJumpDistance - d)
//	backward (|d| < bwd):      weight * BackwardJumpWeight * ForwardJumpDistance * (BackwardJumpDistance - |d|)
//
// Only branch edges earn the fallthrough score. Call edges add half the
// caller block's size to the distance, return edges half the return block's
// size. Distances beyond the thresholds score zero.
//
// # Chain Building
//
// [NodeChainBuilder] runs three phases on one function:
//
//  1. Init: every hot block becomes a singleton [NodeChain], and the CFG edges
//     between hot blocks become chain-level edges.
//  2. Merge: candidate merges ([NodeChainAssembly]) are scored for every pair
//     of connected chains. The best one is applied repeatedly until no merge
//     improves the score. A chain may be split in two and reattached around
//     the other chain.
//  3. Coalesce: leftover chains are concatenated in ordinal order.
//
// The merge phase is greedy and does not backtrack. It may miss layouts that
// score higher.
//
// # Whole-Program Ordering
//
// [CodeLayout] runs one builder per function in parallel and then assigns
// global positions deterministically: hot clusters first, in entry-ordinal
// order, followed by the cold parts of every function in the same order.
//
//	cl := layout.NewCodeLayout(layout.DefaultParams(), prog.Graphs)
//	result := cl.OrderAll()
//	for _, fn := range result.Functions {
//	    fmt.Println(fn.Name, fn.Clusters[0].BBIndexes)
//	}
package layout
