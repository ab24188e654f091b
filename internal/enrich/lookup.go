package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/citations"
	"paperlens/internal/logging"
	"paperlens/internal/scholar"
	"paperlens/internal/util"
)

const (
	StrategyDOI        = "doi"
	StrategyArxiv      = "arxiv"
	StrategyTitle      = "title"
	StrategyFreeText   = "free_text"
	titleSearchLimit   = 5
	freeTextChars      = 200
	defaultCallTimeout = 15 * time.Second
)

// Bibliography is the external index of published works.
type Bibliography interface {
	ByDOI(ctx context.Context, doi string) (*scholar.Paper, error)
	ByExternalID(ctx context.Context, id string) (*scholar.Paper, error)
	SearchByTitle(ctx context.Context, title string, limit int) ([]scholar.Paper, error)
}

// Lookup resolves a bibliography entry to a published work by trying, in
// order, its DOI, its arXiv id, a title guess and a free-text prefix.
type Lookup struct {
	bib     Bibliography
	timeout time.Duration
	log     *zap.Logger
}

func NewLookup(bib Bibliography, timeout time.Duration, log *zap.Logger) *Lookup {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Lookup{bib: bib, timeout: timeout, log: logging.OrNop(log)}
}

// Find returns the first match and the strategy that produced it, or nil
// and "" when every strategy comes up empty. Failed calls are logged and
// count as a miss.
func (l *Lookup) Find(ctx context.Context, reference string) (*scholar.Paper, string) {
	reference = strings.TrimSpace(reference)
	if reference == "" || l.bib == nil {
		return nil, ""
	}

	if doi := scholar.ExtractDOI(reference); doi != "" {
		if p := l.one(ctx, StrategyDOI, func(c context.Context) (*scholar.Paper, error) { return l.bib.ByDOI(c, doi) }); p != nil {
			return p, StrategyDOI
		}
	}
	if arxiv := scholar.ExtractArxivID(reference); arxiv != "" {
		if p := l.one(ctx, StrategyArxiv, func(c context.Context) (*scholar.Paper, error) { return l.bib.ByExternalID(c, "ARXIV:"+arxiv) }); p != nil {
			return p, StrategyArxiv
		}
	}
	if title, ok := citations.ExtractTitleFromReference(reference); ok {
		if p := l.search(ctx, StrategyTitle, title, titleSearchLimit); p != nil {
			return p, StrategyTitle
		}
	}
	prefix, _ := util.TruncateRunes(util.CollapseWhitespace(reference), freeTextChars)
	if p := l.search(ctx, StrategyFreeText, prefix, 1); p != nil {
		return p, StrategyFreeText
	}
	return nil, ""
}

func (l *Lookup) one(ctx context.Context, strategy string, call func(context.Context) (*scholar.Paper, error)) *scholar.Paper {
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	p, err := call(callCtx)
	if err != nil {
		l.log.Debug("bibliographic lookup failed", zap.String("strategy", strategy), zap.String("error_type", lookupErrorType(err)), zap.Error(err))
		return nil
	}
	return p
}

func lookupErrorType(err error) string {
	switch {
	case scholar.IsRateLimited(err):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}

func (l *Lookup) search(ctx context.Context, strategy, query string, limit int) *scholar.Paper {
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	candidates, err := l.bib.SearchByTitle(callCtx, query, limit)
	if err != nil {
		l.log.Debug("bibliographic search failed", zap.String("strategy", strategy), zap.String("error_type", lookupErrorType(err)), zap.Error(err))
		return nil
	}
	return BestMatch(query, candidates)
}

// BestMatch picks the candidate whose title shares the most words with
// query. Ties keep the earlier candidate.
func BestMatch(query string, candidates []scholar.Paper) *scholar.Paper {
	if len(candidates) == 0 {
		return nil
	}
	best, bestScore := 0, WordOverlap(query, candidates[0].Title)
	for i := 1; i < len(candidates); i++ {
		if s := WordOverlap(query, candidates[i].Title); s > bestScore {
			best, bestScore = i, s
		}
	}
	p := candidates[best]
	return &p
}

// WordOverlap is |A∩B| / max(|A|,|B|) over the lower-cased whitespace
// tokens of a and b.
func WordOverlap(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	denom := max(len(wa), len(wb))
	if denom == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(denom)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
