package embedding

import (
	"context"
	"crypto/sha256"
)

// DeterministicTestProvider is a fixed-dimension hashing provider: it
// derives a stable pseudo-vector from a text's SHA-256 digest, with no
// external process or model weights. It exists so hybrid-search code paths
// can be exercised in tests without depending on a real ONNX/portable
// binding (SPEC_FULL.md §6.D). It is never auto-selected by Select.
type DeterministicTestProvider struct {
	dims int
}

// NewDeterministicTestProvider returns a provider producing vectors of the
// given dimensionality.
func NewDeterministicTestProvider(dims int) *DeterministicTestProvider {
	if dims <= 0 {
		dims = 32
	}
	return &DeterministicTestProvider{dims: dims}
}

func (p *DeterministicTestProvider) Name() string    { return "deterministic-test" }
func (p *DeterministicTestProvider) Dimensions() int { return p.dims }

func (p *DeterministicTestProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return hashVector(text, p.dims), nil
}

func (p *DeterministicTestProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// hashVector expands repeated SHA-256 rounds into dims float32 components
// in [-1, 1], deterministic in text.
func hashVector(text string, dims int) []float32 {
	out := make([]float32, dims)
	block := sha256.Sum256([]byte(text))
	round := block
	for i := 0; i < dims; i++ {
		if i > 0 && i%32 == 0 {
			round = sha256.Sum256(round[:])
		}
		b := round[i%32]
		out[i] = (float32(b)/255.0)*2 - 1
	}
	return out
}
