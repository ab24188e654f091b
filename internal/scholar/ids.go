package scholar

import (
	"regexp"
	"strings"
)

var (
	doiRe        = regexp.MustCompile(`(?i)10\.\d{4,9}/[-._;()/:A-Z0-9]+`)
	arxivRe      = regexp.MustCompile(`(?i)(?:arxiv\s*:\s*|arxiv\.org/(?:abs|pdf)/)(\d{4}\.\d{4,5}|[a-z-]+(?:\.[a-z]{2})?/\d{7})(?:v\d+)?`)
	arxivBareRe  = regexp.MustCompile(`(?i)\barxiv\b[^0-9]{0,20}(\d{4}\.\d{4,5})(?:v\d+)?`)
	trailingJunk = ".,;:]"
)

// ExtractDOI returns the first DOI in text, normalized, or "".
func ExtractDOI(text string) string {
	m := doiRe.FindString(text)
	if m == "" {
		return ""
	}
	for {
		trimmed := strings.TrimRight(m, trailingJunk)
		// A closing paren belongs to the DOI only if it closes one.
		for strings.HasSuffix(trimmed, ")") && strings.Count(trimmed, ")") > strings.Count(trimmed, "(") {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if trimmed == m {
			break
		}
		m = trimmed
	}
	return NormalizeDOI(m)
}

// ExtractArxivID returns an arXiv identifier such as "1706.03762" or
// "hep-th/9901001", or "".
func ExtractArxivID(text string) string {
	if m := arxivRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := arxivBareRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi.org/", "DOI:", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return strings.ToLower(strings.TrimSpace(doi))
}
