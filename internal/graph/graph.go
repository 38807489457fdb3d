package graph

import "fmt"

// Graph is an ordered computation graph over layers.
//
// Layers must be added in topological order: every layer's Input must name a
// previously added layer (or be empty, meaning the graph input). The graph
// owns its layers and their tensors; Clone deep-copies everything so a caller
// can transform a copy while keeping the original valid for comparison.
type Graph struct {
	layers []*Layer
	index  map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add appends a layer to the graph.
// Returns an error if the name is empty, already taken, or the input
// reference does not resolve to an earlier layer.
func (g *Graph) Add(l *Layer) error {
	if l.Name == "" {
		return fmt.Errorf("layer name must not be empty")
	}
	if _, exists := g.index[l.Name]; exists {
		return fmt.Errorf("duplicate layer name %q", l.Name)
	}
	if l.Input != "" {
		if _, ok := g.index[l.Input]; !ok {
			return fmt.Errorf("layer %q: input %q does not name an earlier layer", l.Name, l.Input)
		}
	}
	g.index[l.Name] = len(g.layers)
	g.layers = append(g.layers, l)
	return nil
}

// MustAdd is Add that panics on error, for statically known topologies.
func (g *Graph) MustAdd(l *Layer) {
	if err := g.Add(l); err != nil {
		panic(err)
	}
}

// Layer returns the layer with the given name, or nil.
func (g *Graph) Layer(name string) *Layer {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.layers[i]
}

// Layers returns the layers in topological order.
// The returned slice must not be modified.
func (g *Graph) Layers() []*Layer {
	return g.layers
}

// Consumers returns the layers whose Input is the given layer name,
// in topological order.
func (g *Graph) Consumers(name string) []*Layer {
	var out []*Layer
	for _, l := range g.layers {
		if l.Input == name {
			out = append(out, l)
		}
	}
	return out
}

// Outputs returns the layers no other layer consumes (the graph outputs).
func (g *Graph) Outputs() []*Layer {
	consumed := make(map[string]bool, len(g.layers))
	for _, l := range g.layers {
		consumed[l.Input] = true
	}
	var out []*Layer
	for _, l := range g.layers {
		if !consumed[l.Name] {
			out = append(out, l)
		}
	}
	return out
}

// Validate checks every layer's internal shape contract and every adjacent
// producer/consumer channel contract: a consumer with a declared input width
// must match its producer's declared output-channel count.
func (g *Graph) Validate() error {
	for _, l := range g.layers {
		if err := l.validate(); err != nil {
			return err
		}
	}
	for _, l := range g.layers {
		if l.Input == "" {
			continue
		}
		producer := g.Layer(l.Input)
		out := producerChannels(g, producer)
		in := l.InChannels()
		if out == -1 || in == -1 {
			continue
		}
		if l.Kind == Dense {
			// Dense input width is channels * spatial; only the direct
			// one-feature-per-channel case is checkable statically.
			if in%out != 0 {
				return fmt.Errorf("layer %q: input features %d not divisible by producer %q channels %d",
					l.Name, in, producer.Name, out)
			}
			continue
		}
		if in != out {
			return fmt.Errorf("layer %q: input channels %d do not match producer %q output channels %d",
				l.Name, in, producer.Name, out)
		}
	}
	return nil
}

// producerChannels resolves the channel count a layer presents to consumers,
// walking back through layers that have no declared width of their own.
func producerChannels(g *Graph, l *Layer) int {
	for l != nil {
		if n := l.OutChannels(); n != -1 {
			return n
		}
		if l.Input == "" {
			return -1
		}
		l = g.Layer(l.Input)
	}
	return -1
}

// Clone creates a deep copy of the graph. No tensor storage is shared with
// the receiver.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, l := range g.layers {
		c.MustAdd(l.clone())
	}
	return c
}
