//go:build property

package ensure

import (
	"context"
	"fmt"

	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
)

func TestFlushIdempotenceProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("second flush leaves disk unchanged", prop.ForAll(
		func(keys []string, lines []string, initial string) bool {
			fs := afero.NewMemMapFs()
			_ = afero.WriteFile(fs, "/p/.gitignore", []byte(initial), 0o644)

			q := NewQueue(fs, "/p", nil)
			q.Add(".gitignore", UnionLines(lines...))
			patch := make(map[string]interface{}, len(keys))
			for i, k := range keys {
				patch[k] = fmt.Sprintf("v%d", i)
			}
			q.Add("package.json", MergeJSON(patch))

			if _, err := q.Flush(context.Background()); err != nil {
				return false
			}
			first1, _ := afero.ReadFile(fs, "/p/.gitignore")
			first2, _ := afero.ReadFile(fs, "/p/package.json")

			report, err := q.Flush(context.Background())
			if err != nil {
				return false
			}
			second1, _ := afero.ReadFile(fs, "/p/.gitignore")
			second2, _ := afero.ReadFile(fs, "/p/package.json")

			return string(first1) == string(second1) &&
				string(first2) == string(second2) &&
				report.Count(OutcomeUnchanged) == 2
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
