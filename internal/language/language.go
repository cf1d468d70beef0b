// internal/language/language.go
package language

import (
	"path"
	"strings"
)

// Other is the label for files whose extension is not recognized and the
// primary language of a commit that touched no files.
const Other = "Other"

var byExtension = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".rb":    "Ruby",
	".java":  "Java",
	".kt":    "Kotlin",
	".kts":   "Kotlin",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cxx":   "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".rs":    "Rust",
	".php":   "PHP",
	".swift": "Swift",
	".scala": "Scala",
	".ex":    "Elixir",
	".exs":   "Elixir",
	".hs":    "Haskell",
	".lua":   "Lua",
	".r":     "R",
	".sh":    "Shell",
	".bash":  "Shell",
	".zsh":   "Shell",
	".pl":    "Perl",
	".sql":   "SQL",
	".html":  "HTML",
	".htm":   "HTML",
	".css":   "CSS",
	".scss":  "CSS",
	".less":  "CSS",
	".vue":   "Vue",
	".dart":  "Dart",
	".md":    "Markdown",
	".json":  "JSON",
	".yml":   "YAML",
	".yaml":  "YAML",
	".toml":  "TOML",
	".xml":   "XML",
	".proto": "Protocol Buffers",
	".tf":    "HCL",
}

// Detect maps a filename to a language label by extension, or Other.
func Detect(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if lang, ok := byExtension[ext]; ok {
		return lang
	}
	return Other
}

// WeightedFile is one changed file with its contribution weight: line-level
// change count when the source carries one, 1 when only the filename is known.
type WeightedFile struct {
	Name    string
	Changes int
}

// Breakdown sums contribution weights per detected language and returns the
// per-language totals plus the primary language. The primary is the language
// with the largest total, ties broken lexicographically; an empty file list
// yields a nil map and Other.
func Breakdown(files []WeightedFile) (map[string]int, string) {
	if len(files) == 0 {
		return nil, Other
	}
	totals := make(map[string]int, len(files))
	for _, f := range files {
		totals[Detect(f.Name)] += f.Changes
	}
	primary := Other
	best := -1
	for lang, n := range totals {
		if n > best || (n == best && lang < primary) {
			best = n
			primary = lang
		}
	}
	return totals, primary
}
