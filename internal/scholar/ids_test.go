package scholar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDOI(t *testing.T) {
	cases := map[string]string{
		"Smith. Title. J. Foo, 2020. doi:10.1145/3292500.3330701.": "10.1145/3292500.3330701",
		"see https://doi.org/10.1000/ABC-123)":                     "10.1000/abc-123",
		"Odd DOI 10.1002/(SICI)1097-4571(199806)49:8, ok":          "10.1002/(sici)1097-4571(199806)49:8",
		"no identifiers here":                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractDOI(in), in)
	}
}

func TestExtractArxivID(t *testing.T) {
	cases := map[string]string{
		"Vaswani et al. arXiv:1706.03762v5, 2017":     "1706.03762",
		"https://arxiv.org/abs/2005.14165":            "2005.14165",
		"arXiv preprint arXiv: hep-th/9901001":        "hep-th/9901001",
		"CoRR, arXiv preprint 1810.04805, 2018":       "1810.04805",
		"Published in NeurIPS 2017, pages 5998-6008.": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractArxivID(in), in)
	}
}

func TestNormalizeDOI(t *testing.T) {
	assert.Equal(t, "10.1000/xyz", NormalizeDOI(" https://doi.org/10.1000/XYZ "))
	assert.Equal(t, "10.1000/xyz", NormalizeDOI("DOI:10.1000/xyz"))
}
