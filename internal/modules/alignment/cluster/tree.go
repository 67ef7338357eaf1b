package cluster

// Node is an arena entry. Leaves have Left = Right = -1 and Index set to the
// record they stand for.
type Node struct {
	Left, Right int
	Index       int
	Size        int
	Distance    float64
}

func (n Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a binary hierarchy addressed by node id: ids 0..n-1 are leaves
// (record i is node i) and internal nodes follow in merge order.
type Tree struct {
	Nodes []Node
	Root  int
}

func NewTree(n int, merges []Merge) *Tree {
	if n == 0 {
		return &Tree{Root: -1}
	}
	nodes := make([]Node, n, n+len(merges))
	for i := 0; i < n; i++ {
		nodes[i] = Node{Left: -1, Right: -1, Index: i, Size: 1}
	}
	for _, m := range merges {
		nodes = append(nodes, Node{
			Left:     m.A,
			Right:    m.B,
			Index:    -1,
			Size:     nodes[m.A].Size + nodes[m.B].Size,
			Distance: m.Distance,
		})
	}
	return &Tree{Nodes: nodes, Root: len(nodes) - 1}
}

// Members returns the record indices under id in breadth-first order.
func (t *Tree) Members(id int) []int {
	if id < 0 || id >= len(t.Nodes) {
		return nil
	}
	out := make([]int, 0, t.Nodes[id].Size)
	queue := []int{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node := t.Nodes[cur]
		if node.IsLeaf() {
			out = append(out, node.Index)
			continue
		}
		queue = append(queue, node.Left, node.Right)
	}
	return out
}
