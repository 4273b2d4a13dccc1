package wad

import (
	"fmt"
	"io"
)

// PrintTree prints the BSP tree of a level in a clear format, right child first. A child
// reached twice or out of range is reported as corrupt.
func PrintTree(w io.Writer, l *Level) error {
	root, ok := rootChild(l)
	if !ok {
		_, err := fmt.Fprintln(w, "- empty")
		return err
	}

	type frame struct {
		child  ChildID
		prefix string
	}
	visitedNodes := make([]bool, len(l.Nodes))
	visitedLeaves := make([]bool, len(l.Subsectors))
	stack := []frame{{root, ""}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		index, leaf := f.child.Split()
		if leaf {
			if index >= len(l.Subsectors) || visitedLeaves[index] {
				return withName(corrupt(ErrBadChild, "subsector %v", index), l.Name)
			}
			visitedLeaves[index] = true
			ss := l.Subsectors[index]
			if _, err := fmt.Fprintf(w, "%s- subsector %v: %v segs from %v\n", f.prefix, index, ss.NumSegs, ss.FirstSeg); err != nil {
				return ioError(err, "print tree")
			}
			continue
		}

		if index >= len(l.Nodes) || visitedNodes[index] {
			return withName(corrupt(ErrBadChild, "node %v", index), l.Name)
		}
		visitedNodes[index] = true
		n := &l.Nodes[index]
		if _, err := fmt.Fprintf(w, "%s- node %v: (%v,%v) + (%v,%v)\n", f.prefix, index, n.X, n.Y, n.DX, n.DY); err != nil {
			return ioError(err, "print tree")
		}
		prefix := f.prefix + "   "
		stack = append(stack, frame{n.ChildL, prefix}, frame{n.ChildR, prefix})
	}
	return nil
}
