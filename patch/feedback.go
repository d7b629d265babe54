package patch

import (
	"log/slog"
)

// DefaultMaxDepth bounds the feedback walk. It is a guard against runaway
// walks, not a limit on legitimate patch depth.
const DefaultMaxDepth = 500

// Detector finds feedback loops along live connections.
type Detector struct {
	MaxDepth int
	log      *slog.Logger
}

func NewDetector(log *slog.Logger, maxDepth int) *Detector {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if log == nil {
		log = slog.Default()
	}
	return &Detector{MaxDepth: maxDepth, log: log}
}

// Detect reports whether a walk from start downstream meets a node already on
// its path, or runs deeper than MaxDepth. start is at depth 1.
func (d *Detector) Detect(start *Node) bool {
	return d.walk(nil, start, 1)
}

// WouldCreateCycle reports whether connecting src to dst closes a loop.
func (d *Detector) WouldCreateCycle(src, dst *Node) bool {
	return d.walk([]*Node{src}, dst, 2)
}

type frame struct {
	n     *Node
	depth int
	next  []*Node
}

func (d *Detector) walk(path []*Node, start *Node, depth int) bool {
	onPath := make(map[*Node]bool, len(path))
	for _, n := range path {
		onPath[n] = true
	}
	// cleared holds the deepest depth a node was fully walked from without
	// finding anything. Walking it again from there or shallower finds nothing.
	cleared := map[*Node]int{}

	var stack []*frame
	push := func(n *Node, depth int) bool {
		if onPath[n] {
			d.log.Warn("feedback loop detected", "node", n.Name, "depth", depth)
			return true
		}
		if depth > d.MaxDepth {
			d.log.Error("feedback walk exceeded max depth", "node", n.Name, "max_depth", d.MaxDepth)
			return true
		}
		if c, ok := cleared[n]; ok && depth <= c {
			return false
		}
		onPath[n] = true
		stack = append(stack, &frame{n: n, depth: depth, next: downstream(n)})
		return false
	}

	if push(start, depth) {
		return true
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if len(f.next) == 0 {
			onPath[f.n] = false
			cleared[f.n] = max(cleared[f.n], f.depth)
			stack = stack[:len(stack)-1]
			continue
		}
		n := f.next[0]
		f.next = f.next[1:]
		if push(n, f.depth+1) {
			return true
		}
	}
	return false
}

// downstream lists the nodes n feeds through live connections.
func downstream(n *Node) []*Node {
	var ns []*Node
	for _, p := range n.OutPorts {
		for _, c := range p.Conns {
			if c.Live {
				ns = append(ns, c.Dst.Node)
			}
		}
	}
	return ns
}
