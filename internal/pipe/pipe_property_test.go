//go:build property

package pipe

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPipeChainProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("apply equals left fold of transformers", prop.ForAll(
		func(suffixes []string, initial string) bool {
			r := NewRegistry()
			expected := initial
			for _, s := range suffixes {
				r.Register("chain", appendStr(s))
				expected += s
			}

			for i := 0; i < 2; i++ {
				out, err := r.Apply(context.Background(), "chain", initial)
				if err != nil || out != expected {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.Property("empty chain is identity", prop.ForAll(
		func(initial string) bool {
			out, err := NewRegistry().Apply(context.Background(), "none", initial)
			return err == nil && out == initial
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
