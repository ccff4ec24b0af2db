// Package strip expands triangle strips into indexed triangle lists.
//
// Strips are stored back to back in one vertex array. Boundaries are either
// described by per-strip vertex counts or implied by connector vertices that
// repeat a position. Triangles touching a connector collapse to zero area and
// are dropped from the output.
package strip

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Epsilon is the per-axis tolerance for treating two values as equal.
const Epsilon = 0.00001

// Convention describes how declared strip counts account for connector vertices.
type Convention int

const (
	// Unaligned means the counts do not add up to the vertex total.
	Unaligned Convention = iota
	// Exact means counts already include every vertex.
	Exact
	// TwoVertexConnectors means two connector vertices sit between strips.
	TwoVertexConnectors
	// OneVertexConnector means one connector vertex sits between strips.
	OneVertexConnector
)

func (c Convention) String() string {
	switch c {
	case Unaligned:
		return "unaligned"
	case Exact:
		return "exact"
	case TwoVertexConnectors:
		return "two-vertex connectors"
	case OneVertexConnector:
		return "one-vertex connector"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// gap is the number of vertices skipped after each strip.
func (c Convention) gap() int {
	switch c {
	case TwoVertexConnectors:
		return 2
	case OneVertexConnector:
		return 1
	default:
		return 0
	}
}

// Resolve reports which convention makes counts add up to total.
func Resolve(counts []uint16, total int) Convention {
	if len(counts) == 0 {
		return Unaligned
	}

	sum := 0
	for _, c := range counts {
		sum += int(c)
	}
	n := len(counts)

	switch {
	case sum == total:
		return Exact
	case sum+2*(n-1) == total:
		return TwoVertexConnectors
	case sum+(n-1) == total:
		return OneVertexConnector
	default:
		return Unaligned
	}
}

// Range is a run of vertices forming one strip.
type Range struct {
	Start int
	Count int
}

// Stats describes what Triangulate did.
type Stats struct {
	Convention Convention
	Derived    bool // ranges came from connector detection
	Strips     int  // strips of three or more vertices
	Triangles  int  // triangles considered, including dropped ones
	Degenerate int  // triangles dropped for coincident corners
	UVMismatch int  // dropped triangles whose coincident corners disagree on UV
}

// Emitted returns the number of triangles written to the index list.
func (s Stats) Emitted() int {
	return s.Triangles - s.Degenerate
}

// SamePosition reports whether a and b coincide within Epsilon on every axis.
func SamePosition(a, b [3]float32) bool {
	return math32.Abs(a[0]-b[0]) < Epsilon &&
		math32.Abs(a[1]-b[1]) < Epsilon &&
		math32.Abs(a[2]-b[2]) < Epsilon
}

// SameUV reports whether a and b coincide within Epsilon on both axes.
func SameUV(a, b [2]float32) bool {
	return math32.Abs(a[0]-b[0]) < Epsilon &&
		math32.Abs(a[1]-b[1]) < Epsilon
}

// DeriveRanges splits positions into strips at repeated positions. Two
// repeated pairs back to back form a single two-vertex connector. Runs
// shorter than three vertices cannot hold a triangle and are skipped.
func DeriveRanges(positions [][3]float32) []Range {
	var ranges []Range
	count := len(positions)
	start := 0
	i := 0

	add := func(r Range) {
		if r.Count >= 3 {
			ranges = append(ranges, r)
		}
	}

	for i+1 < count {
		if !SamePosition(positions[i], positions[i+1]) {
			i++
			continue
		}

		if i+1 > start {
			add(Range{Start: start, Count: i - start + 1})
		}

		if i+3 < count && SamePosition(positions[i+2], positions[i+3]) {
			start = i + 2
			if start+1 < count && SamePosition(positions[start], positions[start+1]) {
				start++
			}
			i = start
			continue
		}

		start = i + 1
		i = start
	}

	if start < count {
		add(Range{Start: start, Count: count - start})
	}
	return ranges
}

// Triangulate builds a triangle list from strip-ordered vertices. counts
// are the declared strip lengths and may be nil; uvs may be nil when no
// UV diagnostics are wanted.
func Triangulate(positions [][3]float32, uvs [][2]float32, counts []uint16) ([]uint32, Stats) {
	var st Stats
	var indices []uint32

	if len(counts) > 0 {
		st.Convention = Resolve(counts, len(positions))
		if st.Convention != Unaligned {
			start := 0
			for _, c := range counts {
				indices = appendStrip(indices, positions, uvs, Range{Start: start, Count: int(c)}, &st)
				start += int(c) + st.Convention.gap()
			}
			return indices, st
		}
	}

	ranges := DeriveRanges(positions)
	st.Derived = len(ranges) > 0

	for _, r := range ranges {
		indices = appendStrip(indices, positions, uvs, r, &st)
	}
	return indices, st
}

// appendStrip emits the non-degenerate triangles of one strip with
// alternating winding.
func appendStrip(indices []uint32, positions [][3]float32, uvs [][2]float32, r Range, st *Stats) []uint32 {
	if r.Count < 3 || r.Start < 0 || r.Start+r.Count > len(positions) {
		return indices
	}

	st.Strips++
	st.Triangles += r.Count - 2

	for i := 0; i+2 < r.Count; i++ {
		i0 := r.Start + i
		i1 := i0 + 1
		i2 := i0 + 2

		deg01 := SamePosition(positions[i0], positions[i1])
		deg12 := SamePosition(positions[i1], positions[i2])
		deg02 := SamePosition(positions[i0], positions[i2])
		if deg01 || deg12 || deg02 {
			st.Degenerate++
			if uvs != nil && ((deg01 && !SameUV(uvs[i0], uvs[i1])) ||
				(deg12 && !SameUV(uvs[i1], uvs[i2])) ||
				(deg02 && !SameUV(uvs[i0], uvs[i2]))) {
				st.UVMismatch++
			}
			continue
		}

		if i&1 == 0 {
			indices = append(indices, uint32(i0), uint32(i1), uint32(i2))
		} else {
			indices = append(indices, uint32(i1), uint32(i0), uint32(i2))
		}
	}
	return indices
}
