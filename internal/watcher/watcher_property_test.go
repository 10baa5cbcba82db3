//go:build property

package watcher

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestIgnoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	w := &Watcher{ignores: DefaultIgnores}

	segment := gen.Identifier()

	properties.Property("paths under an ignored directory are ignored", prop.ForAll(
		func(prefix, suffix []string, idx int) bool {
			ignore := DefaultIgnores[idx%len(DefaultIgnores)]
			parts := append(append(append([]string(nil), prefix...), ignore), suffix...)
			return w.ignored(strings.Join(parts, "/"))
		},
		gen.SliceOfN(2, segment),
		gen.SliceOfN(2, segment),
		gen.IntRange(0, 100),
	))

	properties.Property("plain source paths are kept", prop.ForAll(
		func(parts []string) bool {
			if len(parts) == 0 {
				return true
			}
			return !w.ignored("src/" + strings.Join(parts, "/") + ".tsx")
		},
		gen.SliceOfN(3, segment),
	))

	properties.TestingRun(t)
}
