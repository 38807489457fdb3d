package tensor

import "math/rand"

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	t.Fill(value)
	return t
}

// Rand creates a tensor filled with uniform random values in [-1, 1),
// drawn from a seeded source so callers get reproducible fixtures.
func Rand(shape Shape, seed int64) *Tensor {
	t := Zeros(shape)
	rng := rand.New(rand.NewSource(seed))
	for i := range t.data {
		t.data[i] = rng.Float32()*2 - 1
	}
	return t
}
