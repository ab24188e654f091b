package citations

import (
	"regexp"
	"strconv"
	"strings"

	"paperlens/internal/util"
)

type Style string

const (
	StyleNumbered   Style = "numbered"
	StyleAuthorYear Style = "author-year"
	StyleUnknown    Style = "unknown"
)

const (
	// Style is a document-global property; the head of the text is enough.
	styleSampleChars = 5000
	minStyleMatches  = 3
	// Ranges wider than this are treated as two separate numbers, e.g. a
	// page span that happened to be bracketed.
	maxRangeSpan = 500
)

var (
	numberedRe   = regexp.MustCompile(`\[(\d+(?:[,\s-]+\d+)*)\]`)
	authorYearRe = regexp.MustCompile(`\(([A-Z][a-z]+(?:\s(?:&|and)\s[A-Z][a-z]+)?(?:\set\sal\.)?),\s*(\d{4}[a-z]?)\)`)
	headingRe    = regexp.MustCompile(`(?im)^[ \t]*(references|bibliography|works cited)[ \t]*$`)

	numberedEntryRe   = regexp.MustCompile(`\[(\d+)\]`)
	authorYearEntryRe = regexp.MustCompile(`^([A-Z][a-z]+(?:\s(?:&|and)\s[A-Z][a-z]+)?(?:\set\sal\.)?)\s*\((\d{4}[a-z]?)\)`)
	paragraphBreakRe  = regexp.MustCompile(`\n[ \t]*\n\s*`)
	rangeDashRe       = regexp.MustCompile(`\s*-\s*`)
)

// DetectStyle classifies the citation style by majority vote over the first
// few thousand characters. Fewer than three matches, or a tie, is unknown.
func DetectStyle(text string) Style {
	sample, _ := util.TruncateRunes(text, styleSampleChars)
	numbered := len(numberedRe.FindAllStringIndex(sample, -1))
	authorYear := len(authorYearRe.FindAllStringIndex(sample, -1))
	switch {
	case numbered > authorYear && numbered >= minStyleMatches:
		return StyleNumbered
	case authorYear > numbered && authorYear >= minStyleMatches:
		return StyleAuthorYear
	default:
		return StyleUnknown
	}
}

// ReferenceHeading returns the byte span of the references heading line.
func ReferenceHeading(text string) (start, end int, ok bool) {
	loc := headingRe.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

// BodyText is everything before the references heading.
func BodyText(text string) string {
	if start, _, ok := ReferenceHeading(text); ok {
		return text[:start]
	}
	return text
}

// ReferenceSection is everything after the references heading, or "" when
// the paper has none.
func ReferenceSection(text string) string {
	if _, end, ok := ReferenceHeading(text); ok {
		return text[end:]
	}
	return ""
}

// ParseReferences maps canonical citation keys to their bibliography text.
func ParseReferences(section string, style Style) map[string]string {
	refs := make(map[string]string)
	if strings.TrimSpace(section) == "" {
		return refs
	}
	if style == StyleAuthorYear {
		for _, para := range paragraphBreakRe.Split(section, -1) {
			entry := util.CollapseWhitespace(para)
			if len([]rune(entry)) < 10 {
				continue
			}
			m := authorYearEntryRe.FindStringSubmatch(entry)
			if m == nil {
				continue
			}
			refs[authorYearKey(m[1], m[2])] = entry
		}
		return refs
	}

	locs := numberedEntryRe.FindAllStringSubmatchIndex(section, -1)
	for i, loc := range locs {
		end := len(section)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		entry := util.CollapseWhitespace(section[loc[1]:end])
		if entry == "" {
			continue
		}
		n, err := strconv.Atoi(section[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		refs[numberedKey(n)] = entry
	}
	return refs
}

// ExtractMarkers returns every in-text marker of body in document order,
// expanded to canonical keys. Duplicates are kept. Unknown style takes the
// numbered path.
func ExtractMarkers(body string, style Style) []string {
	var out []string
	if style == StyleAuthorYear {
		for _, m := range authorYearRe.FindAllStringSubmatch(body, -1) {
			out = append(out, authorYearKey(m[1], m[2]))
		}
		return out
	}
	for _, m := range numberedRe.FindAllStringSubmatch(body, -1) {
		for _, n := range ExpandGroup(m[1]) {
			out = append(out, numberedKey(n))
		}
	}
	return out
}

// ExpandGroup turns the inside of a bracket group ("1-3", "2, 5") into the
// numbers it cites.
func ExpandGroup(inner string) []int {
	var out []int
	for _, tok := range groupTokens(inner) {
		if lo, hi, ok := parseRange(tok); ok {
			if hi >= lo && hi-lo <= maxRangeSpan {
				for i := lo; i <= hi; i++ {
					out = append(out, i)
				}
			} else {
				out = append(out, lo, hi)
			}
			continue
		}
		for _, part := range strings.Split(tok, "-") {
			if n, err := strconv.Atoi(part); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

func groupTokens(inner string) []string {
	inner = rangeDashRe.ReplaceAllString(inner, "-")
	return strings.FieldsFunc(inner, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

func parseRange(tok string) (lo, hi int, ok bool) {
	a, b, found := strings.Cut(tok, "-")
	if !found || strings.Contains(b, "-") {
		return 0, 0, false
	}
	lo, errA := strconv.Atoi(a)
	hi, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func numberedKey(n int) string {
	return "[" + strconv.Itoa(n) + "]"
}

func authorYearKey(authors, year string) string {
	return "(" + authors + ", " + year + ")"
}

// parseNumberedKey reports the number inside a canonical "[n]" key.
func parseNumberedKey(key string) (int, bool) {
	if len(key) < 3 || key[0] != '[' || key[len(key)-1] != ']' {
		return 0, false
	}
	n, err := strconv.Atoi(key[1 : len(key)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}
