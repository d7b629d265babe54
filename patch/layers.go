package patch

import "sort"

// Layers arranges nodes into processing layers along live connections:
// every node sits in a later layer than everything feeding it, and sinks sit
// right after their latest input.
func (p *Patch) Layers() [][]*Node {
	if len(p.Nodes) == 0 {
		return nil
	}

	nodeLayers := make(map[*Node]int, len(p.Nodes))
	firstLayer := 0
	var assignLayer func(n *Node, layer int)
	assignLayer = func(n *Node, layer int) {
		if l, ok := nodeLayers[n]; ok && l <= layer {
			return
		}
		nodeLayers[n] = layer
		for _, c := range liveInputs(n) {
			assignLayer(c.Src.Node, layer-1)
		}
		if firstLayer > layer {
			firstLayer = layer
		}
	}

	var sinks []*Node
	for _, n := range p.Nodes {
		if len(downstream(n)) == 0 {
			sinks = append(sinks, n)
		}
	}

	for _, n := range sinks {
		assignLayer(n, 0)
	}
	numLayers := 1 - firstLayer

	for _, n := range sinks {
		prevLayer := firstLayer - 1
		for _, c := range liveInputs(n) {
			if l := nodeLayers[c.Src.Node]; prevLayer < l {
				prevLayer = l
			}
		}
		if prevLayer < firstLayer {
			nodeLayers[n] = firstLayer
		} else {
			nodeLayers[n] = prevLayer + 1
		}
	}

	layers := make([][]*Node, numLayers)
	for _, n := range p.Nodes {
		l := nodeLayers[n] - firstLayer
		layers[l] = append(layers[l], n)
	}
	for _, l := range layers {
		sort.SliceStable(l, func(i, j int) bool {
			n1, n2 := l[i], l[j]
			if n1.Kind != n2.Kind {
				return n1.Kind < n2.Kind
			}
			return n1.Name < n2.Name
		})
	}
	return layers
}

func liveInputs(n *Node) []*Connection {
	var cs []*Connection
	for _, p := range n.InPorts {
		for _, c := range p.Conns {
			if c.Live {
				cs = append(cs, c)
			}
		}
	}
	return cs
}
