package citations

import (
	"regexp"
	"strings"

	"paperlens/internal/models"
)

const (
	UntitledPaper  = "Untitled Paper"
	titleScanLines = 5
	maxTitleChars  = 500
)

var (
	affiliationRe = regexp.MustCompile(`(?i)\b(university|universit[éä]t|institute|department|dept\.|laborator(y|ies)|school of|college|faculty|research center|inc\.|corporation)\b`)
	nameListRe    = regexp.MustCompile(`^\p{Lu}[\p{L}'.-]*(?:\s+\p{Lu}[\p{L}'.-]*){1,3}[\d*†‡,\s]*$`)
)

type Result struct {
	Title     string               `json:"title"`
	Style     Style                `json:"style"`
	Citations []models.NewCitation `json:"citations"`
}

// Extract runs the whole pipeline over a paper's text: title guess, style
// detection, reference parsing and one citation per unique in-body marker,
// in order of first occurrence.
func Extract(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	style := DetectStyle(text)
	refs := ParseReferences(ReferenceSection(text), style)
	markers := ExtractMarkers(BodyText(text), style)

	seen := make(map[string]struct{}, len(markers))
	out := make([]models.NewCitation, 0, len(markers))
	for _, key := range markers {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		c := models.NewCitation{CitationKey: key}
		if ref, ok := refs[key]; ok {
			c.RawReference = models.StringPtr(ref)
		}
		c.ContextInPaper = models.StringPtr(ExtractContext(text, key, DefaultSentencesAround))
		out = append(out, c)
	}
	return Result{Title: ExtractTitle(text), Style: style, Citations: out}
}

// ExtractTitle takes the leading non-blank lines up to the abstract and
// stops at the first line that reads like an author list or affiliation.
func ExtractTitle(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == titleScanLines {
			break
		}
	}

	var parts []string
	for _, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "abstract") {
			break
		}
		if len(parts) > 0 && looksLikeAuthorLine(line) {
			break
		}
		if len([]rune(line)) > 5 {
			parts = append(parts, line)
		}
	}
	title := strings.TrimSpace(strings.Join(parts, " "))
	if title == "" || len([]rune(title)) > maxTitleChars {
		return UntitledPaper
	}
	return title
}

func looksLikeAuthorLine(line string) bool {
	if strings.Contains(line, "@") || affiliationRe.MatchString(line) {
		return true
	}
	names := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ';' })
	var expanded []string
	for _, n := range names {
		for _, part := range strings.Split(n, " and ") {
			if p := strings.TrimSpace(part); p != "" {
				expanded = append(expanded, p)
			}
		}
	}
	if len(expanded) < 2 {
		return false
	}
	for _, n := range expanded {
		if !nameListRe.MatchString(n) {
			return false
		}
	}
	return true
}
