package tensor

import "fmt"

// Take selects the given indices along an axis, in the order given.
//
// The result is a new tensor whose size along the axis equals len(indices);
// all other axes are unchanged. Index order is preserved, so ascending
// indices keep the relative order of the selected slices. Supports negative
// axis indexing (-1 = last axis).
//
// Example:
//
//	w := tensor.Zeros(tensor.Shape{8, 3, 1, 1})
//	kept := w.Take(0, []int{1, 3, 4, 6}) // Shape: [4, 3, 1, 1]
func (t *Tensor) Take(axis int, indices []int) *Tensor {
	axis = t.resolveAxis(axis)
	if len(indices) == 0 {
		panic("take: at least one index required")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= t.shape[axis] {
			panic(fmt.Sprintf("take: index %d out of bounds for axis %d (size %d)", idx, axis, t.shape[axis]))
		}
	}

	outShape := t.shape.Clone()
	outShape[axis] = len(indices)
	out := Zeros(outShape)

	// outer = product of dims before axis, inner = product of dims after.
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= t.shape[i]
	}
	inner := 1
	for i := axis + 1; i < len(t.shape); i++ {
		inner *= t.shape[i]
	}

	srcAxis := t.shape[axis]
	for o := 0; o < outer; o++ {
		for j, idx := range indices {
			srcBase := (o*srcAxis + idx) * inner
			dstBase := (o*len(indices) + j) * inner
			copy(out.data[dstBase:dstBase+inner], t.data[srcBase:srcBase+inner])
		}
	}
	return out
}

// ScaleAxis multiplies each slice along an axis by the matching factor.
//
// len(factors) must equal the axis size. The receiver is unchanged; a new
// tensor is returned. This is the masking primitive: a factor of 0 zeroes a
// channel's entire slice.
func (t *Tensor) ScaleAxis(axis int, factors []float32) *Tensor {
	axis = t.resolveAxis(axis)
	if len(factors) != t.shape[axis] {
		panic(fmt.Sprintf("scale: %d factors for axis %d of size %d", len(factors), axis, t.shape[axis]))
	}

	out := t.Clone()
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= t.shape[i]
	}
	inner := 1
	for i := axis + 1; i < len(t.shape); i++ {
		inner *= t.shape[i]
	}

	axisSize := t.shape[axis]
	for o := 0; o < outer; o++ {
		for c := 0; c < axisSize; c++ {
			f := factors[c]
			if f == 1 {
				continue
			}
			base := (o*axisSize + c) * inner
			for i := base; i < base+inner; i++ {
				out.data[i] *= f
			}
		}
	}
	return out
}
