// Package embedding defines the pluggable embedding provider abstraction
// (spec §4.E) and the two-layer cache in front of it. The core never
// bundles a real model: both implementations shipped here (Null and the
// deterministic test provider in testprovider.go) are explicitly non-model
// stand-ins, per spec §1 and SPEC_FULL.md §6.D.
package embedding

import "context"

// Provider is a uniform interface over an embedding backend.
type Provider interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// nullProvider is the always-present zero-configuration default: every
// accessor returns a zero value with no error, matching spec §4.E's
// "returns null from every accessor" rule for when no provider is active.
type nullProvider struct{}

// Null is the shared nullProvider instance.
var Null Provider = nullProvider{}

func (nullProvider) Name() string       { return "" }
func (nullProvider) Dimensions() int    { return 0 }
func (nullProvider) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (nullProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	return out, nil
}

// IsNull reports whether p is the null provider (spec §9: "Option<Provider>
// as a simple match").
func IsNull(p Provider) bool {
	_, ok := p.(nullProvider)
	return ok
}

// registry is the process-wide slot an external ONNX/portable provider
// binding would register into (spec §4.E selection policy); none ships in
// this repository.
var registry = map[string]func() (Provider, error){}

// RegisterProvider makes a named provider constructor available to
// Select. Out-of-repository bindings call this from an init function.
func RegisterProvider(name string, construct func() (Provider, error)) {
	registry[name] = construct
}

// Select implements spec §4.E's deterministic selection policy: try the
// native provider first, then the portable provider, then fall back to
// Null. "native" and "portable" are the names an external binding is
// expected to register under; this repository registers neither, so
// Select degrades to Null unless a caller has registered something.
func Select() Provider {
	for _, name := range []string{"native", "portable"} {
		if construct, ok := registry[name]; ok {
			if p, err := construct(); err == nil {
				return p
			}
		}
	}
	return Null
}
