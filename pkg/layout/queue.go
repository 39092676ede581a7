package layout

// assemblyQueue is a max-heap of candidate merges for container/heap.
//
// Entries are never updated in place. A replaced or invalidated assembly
// stays in the heap and is discarded when popped.
type assemblyQueue []*NodeChainAssembly

func (q assemblyQueue) Len() int { return len(q) }

// Less orders by gain, highest first. Equal gains fall back to the split and
// unsplit ids so that the merge sequence is deterministic.
func (q assemblyQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.ScoreGain != b.ScoreGain {
		return a.ScoreGain > b.ScoreGain
	}
	if a.Split != b.Split {
		return a.Split < b.Split
	}
	return a.Unsplit < b.Unsplit
}

func (q assemblyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *assemblyQueue) Push(x any) { *q = append(*q, x.(*NodeChainAssembly)) }

func (q *assemblyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
