package assistant

import (
	"fmt"
	"strings"

	"paperlens/internal/models"
	"paperlens/internal/util"
)

// FormatSections renders retrieved chunks as numbered "[Section i]" blocks
// in rank order.
func FormatSections(matches []models.ChunkMatch) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("[Section %d]\n%s", i+1, m.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// FallbackContext is the full text, cut to budget characters with a
// trailing marker when it is longer.
func FallbackContext(fullText string, budget int) string {
	cut, truncated := util.TruncateRunes(fullText, budget)
	if !truncated {
		return fullText
	}
	return cut + TruncationMarker
}

// CitationsBlock lists one line per citation: key, what it points to and,
// when known, why it matters.
func CitationsBlock(cs []models.Citation) string {
	if len(cs) == 0 {
		return NoCitations
	}
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		what := models.Deref(c.CitedTitle)
		if what == "" {
			what = models.Deref(c.RawReference)
		}
		if what == "" {
			what = "reference not available"
		}
		line := fmt.Sprintf("- %s %s", c.CitationKey, what)
		if why := models.Deref(c.RelevanceExplanation); why != "" {
			line += "\n  Relevance: " + why
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func SystemPrompt(selected, sections, citationsBlock string) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nSelected passage:\n\"")
	b.WriteString(strings.TrimSpace(selected))
	b.WriteString("\"\n\nRelevant paper sections (for context only):\n")
	b.WriteString(sections)
	b.WriteString("\n\nCitations near the selected passage:\n")
	b.WriteString(citationsBlock)
	return b.String()
}

// Conversation is the history when there is one, otherwise a single user
// turn asking about the selection.
func Conversation(selected string, history []models.Message) []models.Message {
	if len(history) > 0 {
		out := make([]models.Message, len(history))
		copy(out, history)
		return out
	}
	return []models.Message{{
		Role:    models.RoleUser,
		Content: "Selected passage from the paper:\n\n\"" + selected + "\"\n\nPlease explain this passage.",
	}}
}
