package model

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Node is one node of a flattened regression tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a binary regression tree; Nodes[0] is the root
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks x down the tree. Samples with x[Feature] <= Threshold go left.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows a squared-loss tree on a fixed sample set
type treeBuilder struct {
	X              [][]float64
	target         []float64
	maxDepth       int
	minSamplesLeaf int
	nodes          []Node
}

func fitTree(X [][]float64, target []float64, maxDepth, minSamplesLeaf int) *Tree {
	b := &treeBuilder{
		X:              X,
		target:         target,
		maxDepth:       maxDepth,
		minSamplesLeaf: minSamplesLeaf,
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) leafValue(idx []int) float64 {
	vals := make([]float64, len(idx))
	for i, j := range idx {
		vals[i] = b.target[j]
	}
	return floats.Sum(vals) / float64(len(vals))
}

// grow appends the subtree for idx and returns its node index
func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.leafValue(idx)})

	if depth >= b.maxDepth || len(idx) < 2*b.minSamplesLeaf {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, j := range idx {
		if b.X[j][feature] <= threshold {
			left = append(left, j)
		} else {
			right = append(right, j)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit finds the split maximizing the reduction in squared error
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	total := 0.0
	for _, j := range idx {
		total += b.target[j]
	}
	parentScore := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, n)
	width := len(b.X[idx[0]])
	for f := 0; f < width; f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		leftSum := 0.0
		for i := 0; i < n-1; i++ {
			leftSum += b.target[sorted[i]]
			nl := i + 1
			nr := n - nl
			if nl < b.minSamplesLeaf {
				continue
			}
			if nr < b.minSamplesLeaf {
				break
			}
			lo, hi := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}
