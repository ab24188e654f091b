package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateEnrichmentOnlyTouchesPendingRows(t *testing.T) {
	where := updateEnrichmentSQL[strings.Index(updateEnrichmentSQL, "WHERE"):]
	require.Contains(t, where, "AND NOT enriched AND NOT enrichment_failed")
	require.Contains(t, where, "RETURNING "+citationColumns)
}
