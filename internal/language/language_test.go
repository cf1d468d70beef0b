// internal/language/language_test.go
package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	cases := map[string]string{
		"main.go":              "Go",
		"app/models/user.py":   "Python",
		"src/index.TS":         "TypeScript",
		"web/component.tsx":    "TypeScript",
		"README.md":            "Markdown",
		"Dockerfile":           Other,
		"scripts/deploy.sh":    "Shell",
		"migrations/0001.sql":  "SQL",
		"noextension":          Other,
		".gitignore":           Other,
		"deep/path/thing.rs":   "Rust",
		"config.yaml":          "YAML",
		"weird.unknownext":     Other,
	}
	for file, want := range cases {
		assert.Equal(t, want, Detect(file), "file %q", file)
	}
}

func TestBreakdown(t *testing.T) {
	t.Run("sums weights per language and picks the largest as primary", func(t *testing.T) {
		totals, primary := Breakdown([]WeightedFile{
			{Name: "a.go", Changes: 10},
			{Name: "b.go", Changes: 5},
			{Name: "c.py", Changes: 8},
			{Name: "notes.txt", Changes: 100},
		})
		assert.Equal(t, map[string]int{"Go": 15, "Python": 8, Other: 100}, totals)
		assert.Equal(t, Other, primary)
	})

	t.Run("empty file list yields Other and no map", func(t *testing.T) {
		totals, primary := Breakdown(nil)
		assert.Nil(t, totals)
		assert.Equal(t, Other, primary)
	})

	t.Run("unit weights count files", func(t *testing.T) {
		totals, primary := Breakdown([]WeightedFile{
			{Name: "a.py", Changes: 1},
			{Name: "b.py", Changes: 1},
			{Name: "c.go", Changes: 1},
		})
		assert.Equal(t, map[string]int{"Python": 2, "Go": 1}, totals)
		assert.Equal(t, "Python", primary)
	})

	t.Run("ties break lexicographically", func(t *testing.T) {
		_, primary := Breakdown([]WeightedFile{
			{Name: "a.py", Changes: 3},
			{Name: "b.go", Changes: 3},
		})
		assert.Equal(t, "Go", primary)
	})
}
