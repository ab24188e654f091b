package citations

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultSentencesAround = 2
	contextWindowChars     = 500
	minReferenceTitleChars = 10
)

var (
	quotedTitleRe = regexp.MustCompile(`["“]([^"“”]{10,})["”]`)
	leadingYearRe = regexp.MustCompile(`^\d{4}`)
)

// ExtractContext returns the sentences around the first in-body occurrence
// of key: the last sentencesAround sentences before it and the first
// sentencesAround+1 from it onward. It returns "" when key does not occur.
func ExtractContext(fullText, key string, sentencesAround int) string {
	if sentencesAround < 0 {
		sentencesAround = 0
	}
	body := BodyText(fullText)
	pos := locate(body, key)
	if pos < 0 {
		return ""
	}
	start, end := window(body, pos, contextWindowChars)

	before := splitSentences(body[start:pos])
	if len(before) > sentencesAround {
		before = before[len(before)-sentencesAround:]
	}
	after := splitSentences(body[pos:end])
	if len(after) > sentencesAround+1 {
		after = after[:sentencesAround+1]
	}
	return strings.TrimSpace(strings.Join(before, " ") + strings.Join(after, " "))
}

// Span is a half-open range of rune offsets into a text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Occurrences returns every byte offset in body at which key is cited,
// including compound groups and ranges that cover it.
func Occurrences(body, key string) []int {
	spans := occurrenceSpans(body, key)
	out := make([]int, 0, len(spans))
	for _, sp := range spans {
		out = append(out, sp[0])
	}
	return out
}

// MarkerSpans returns the rune spans of every marker in text that cites
// key. A compound group such as "[1-3, 7]" is reported whole.
func MarkerSpans(text, key string) []Span {
	spans := occurrenceSpans(text, key)
	offs := make([]int, 0, 2*len(spans))
	for _, sp := range spans {
		offs = append(offs, sp[0], sp[1])
	}
	runes := RuneOffsets(text, offs)
	out := make([]Span, len(spans))
	for i := range spans {
		out[i] = Span{Start: runes[2*i], End: runes[2*i+1]}
	}
	return out
}

// RuneOffsets converts byte offsets into s to rune offsets. Offsets are
// expected in ascending order; out of order input is still converted,
// only slower.
func RuneOffsets(s string, byteOffs []int) []int {
	out := make([]int, len(byteOffs))
	prevByte, prevRune := 0, 0
	for i, b := range byteOffs {
		if b < prevByte {
			prevByte, prevRune = 0, 0
		}
		prevRune += utf8.RuneCountInString(s[prevByte:b])
		prevByte = b
		out[i] = prevRune
	}
	return out
}

func occurrenceSpans(body, key string) [][2]int {
	var out [][2]int
	if n, ok := parseNumberedKey(key); ok {
		for _, loc := range numberedRe.FindAllStringSubmatchIndex(body, -1) {
			for _, v := range ExpandGroup(body[loc[2]:loc[3]]) {
				if v == n {
					out = append(out, [2]int{loc[0], loc[1]})
					break
				}
			}
		}
		return out
	}
	for _, m := range authorYearRe.FindAllStringSubmatchIndex(body, -1) {
		if authorYearKey(body[m[2]:m[3]], body[m[4]:m[5]]) == key {
			out = append(out, [2]int{m[0], m[1]})
		}
	}
	if len(out) > 0 || key == "" {
		return out
	}
	for i := 0; ; {
		j := strings.Index(body[i:], key)
		if j < 0 {
			break
		}
		out = append(out, [2]int{i + j, i + j + len(key)})
		i += j + len(key)
	}
	return out
}

// locate finds the offset used for context extraction. For numbered keys a
// group listing the number wins over a range covering it, which wins over a
// literal match.
func locate(body, key string) int {
	if key == "" {
		return -1
	}
	n, ok := parseNumberedKey(key)
	if !ok {
		if occ := Occurrences(body, key); len(occ) > 0 {
			return occ[0]
		}
		return -1
	}
	firstRange := -1
	for _, loc := range numberedRe.FindAllStringSubmatchIndex(body, -1) {
		for _, tok := range groupTokens(body[loc[2]:loc[3]]) {
			if lo, hi, isRange := parseRange(tok); isRange {
				if firstRange < 0 && lo <= n && n <= hi {
					firstRange = loc[0]
				}
				continue
			}
			for _, v := range ExpandGroup(tok) {
				if v == n {
					return loc[0]
				}
			}
		}
	}
	if firstRange >= 0 {
		return firstRange
	}
	return strings.Index(body, key)
}

// window returns a span of up to size characters either side of pos,
// aligned to rune boundaries.
func window(s string, pos, size int) (start, end int) {
	start, end = pos, pos
	for i := 0; i < size && start > 0; i++ {
		_, w := utf8.DecodeLastRuneInString(s[:start])
		start -= w
	}
	for i := 0; i < size && end < len(s); i++ {
		_, w := utf8.DecodeRuneInString(s[end:])
		end += w
	}
	return start, end
}

// splitSentences cuts after '.', '!' or '?' followed by whitespace and
// drops that whitespace. A trailing separator yields a final empty piece so
// that joining keeps the gap before whatever follows.
func splitSentences(s string) []string {
	var out []string
	pieceStart := 0
	i := 0
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		i += w
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(s) {
			r2, w2 := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			j += w2
		}
		if j == i {
			continue
		}
		out = append(out, s[pieceStart:i])
		pieceStart = j
		i = j
	}
	return append(out, s[pieceStart:])
}

// ExtractTitleFromReference guesses the cited title from a bibliography
// entry: a quoted span first, then the segment after the author list.
func ExtractTitleFromReference(reference string) (string, bool) {
	if m := quotedTitleRe.FindStringSubmatch(reference); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	parts := strings.Split(reference, ". ")
	if len(parts) < 2 {
		return "", false
	}
	candidate := strings.TrimSpace(parts[1])
	if len([]rune(candidate)) < minReferenceTitleChars || leadingYearRe.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}
