package retrieval

import (
	"fmt"
	"strings"

	"github.com/starford/codex/internal/models"
)

// Separator divides entries of a grounding block.
const Separator = "\n---\n"

// Grounding is the rendered context block with its footnotes.
// Citation [#i] in either field refers to the i-th hit (1-based).
type Grounding struct {
	Context   string   `json:"context"`
	Footnotes []string `json:"footnotes"`
}

// Format renders hits as "[#i | label]\n<text>" entries joined by Separator.
// No hits yields "".
func Format(hits []models.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[#%d | %s]\n%s", i+1, h.Label(), h.Text)
	}
	return strings.Join(parts, Separator)
}

// Footnotes renders "[#i] label" for each hit.
func Footnotes(hits []models.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = fmt.Sprintf("[#%d] %s", i+1, h.Label())
	}
	return out
}

// Ground bundles Format and Footnotes.
func Ground(hits []models.Hit) Grounding {
	return Grounding{Context: Format(hits), Footnotes: Footnotes(hits)}
}

// Preview renders hits on one line each, "[#i | label] text", for replies
// shown when no answer could be generated.
func Preview(hits []models.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[#%d | %s] %s", i+1, h.Label(), h.Text)
	}
	return strings.Join(parts, Separator)
}
