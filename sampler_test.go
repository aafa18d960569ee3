package apmagent

import (
	mathrand "math/rand"
	"testing"
)

// fixedFloatSource is a math/rand.Source that replays a fixed sequence of
// Float64 outputs, cycling if exhausted.
type fixedFloatSource struct {
	values []float64
	i      int
}

func (s *fixedFloatSource) Int63() int64 {
	v := s.values[s.i%len(s.values)]
	s.i++
	return int64(v * (1 << 63))
}

func (s *fixedFloatSource) Seed(int64) {}

func TestSamplerFloorAtFixedRate(t *testing.T) {
	draws := []float64{0.1, 0.5, 0.3, 0.9, 0.2, 0.7, 0.6, 0.8, 0.35, 0.45}
	s := &sampler{rnd: mathrand.New(&fixedFloatSource{values: draws})}

	const rate = 0.4
	sampled := 0
	for i := 0; i < len(draws); i++ {
		if s.Float64() < rate {
			sampled++
		}
	}
	if sampled != 4 {
		t.Errorf("sampled = %d, want 4", sampled)
	}
}
