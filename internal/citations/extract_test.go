package citations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"paperlens/internal/models"
)

func TestExtract_NumberedPaper(t *testing.T) {
	text := "Attention Revisited\nAbstract\nWe revisit attention.\n" +
		"Transformers changed sequence modeling. Our model builds on self-attention, as shown in [1]. It scales well.\n" +
		"References\n" +
		"[1] Vaswani et al. Attention is all you need. 2017."

	res := Extract(text)
	require.Equal(t, "Attention Revisited", res.Title)
	require.Len(t, res.Citations, 1)

	c := res.Citations[0]
	require.Equal(t, "[1]", c.CitationKey)
	require.NotNil(t, c.RawReference)
	require.Contains(t, *c.RawReference, "Attention is all you need")
	require.NotNil(t, c.ContextInPaper)
	require.Contains(t, *c.ContextInPaper, "as shown in [1].")
}

func TestExtract_AuthorYearPaper(t *testing.T) {
	text := "Graph Methods for Citation Analysis\n\nAbstract\nWe study graphs.\n\n" +
		"Prior work on spectral methods (Smith & Jones, 2020) motivates this study. " +
		"Later results (Brown et al., 2019) extended it. We also follow (Lee, 2018) closely. " +
		"Bounds were proved earlier (Smith & Jones, 2020).\n\n" +
		"References\n\n" +
		"Smith & Jones (2020). Spectral graph bounds. Journal of Graphs.\n\n" +
		"Brown et al. (2019). Extending spectral bounds. Proceedings.\n\n" +
		"Lee (2018). Close reading of graphs. Press."

	res := Extract(text)
	require.Equal(t, StyleAuthorYear, res.Style)
	keys := citationKeys(res.Citations)
	require.Equal(t, []string{"(Smith & Jones, 2020)", "(Brown et al., 2019)", "(Lee, 2018)"}, keys)

	smith := res.Citations[0]
	require.NotNil(t, smith.RawReference)
	require.Equal(t, "Smith & Jones (2020). Spectral graph bounds. Journal of Graphs.", *smith.RawReference)
	require.Contains(t, *smith.ContextInPaper, "spectral methods (Smith & Jones, 2020)")
}

func TestExtract_DedupesExpandedMarkers(t *testing.T) {
	text := "A [1-3]. B [2, 5]. C [2]. D [5].\nReferences\n[1] One ref entry.\n[5] Five ref entry."
	res := Extract(text)
	require.Equal(t, StyleNumbered, res.Style)
	require.Equal(t, []string{"[1]", "[2]", "[3]", "[5]"}, citationKeys(res.Citations))
	require.Equal(t, "One ref entry.", *res.Citations[0].RawReference)
	require.Nil(t, res.Citations[1].RawReference)
	require.Equal(t, "Five ref entry.", *res.Citations[3].RawReference)
}

func TestExtract_NoCitations(t *testing.T) {
	res := Extract("")
	require.Equal(t, UntitledPaper, res.Title)
	require.Equal(t, StyleUnknown, res.Style)
	require.Empty(t, res.Citations)
}

func TestExtractTitle(t *testing.T) {
	cases := map[string]string{
		"Deep Graph Models\nAlice Smith, Bob Jones\nUniversity of X\nAbstract": "Deep Graph Models",
		"Deep Graph Models\nfor Citation Analysis\nAlice Smith, Bob Jones":     "Deep Graph Models for Citation Analysis",
		"Sparse Codes\nalice@example.org":                                      "Sparse Codes",
		"\n\n  \nAbstract\nBody":                                               UntitledPaper,
		"Tiny\nAbstract":                                                       UntitledPaper,
	}
	for in, want := range cases {
		require.Equal(t, want, ExtractTitle(in), "input %q", in)
	}
}

func citationKeys(cs []models.NewCitation) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.CitationKey)
	}
	return out
}
