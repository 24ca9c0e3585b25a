package ingest

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlook_service/internal/app/testutil"
)

func TestParseOutlookPage(t *testing.T) {
	f, err := os.Open("testdata/outlook_page.html")
	require.NoError(t, err)
	defer f.Close()

	recs, err := ParseOutlookPage(f)
	require.Error(t, err, "the report without a region must be reported")
	assert.Contains(t, err.Error(), "report 3: missing data-er")
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "1234", first.NOC)
	assert.Equal(t, "5920", first.EconomicRegionCode)
	assert.Equal(t, "ON", first.Province)
	assert.Equal(t, "EN", first.Lang)
	assert.Equal(t, "Software engineers in Toronto", first.Title)
	assert.Equal(t, "Good", first.Outlook)
	assert.Equal(t, "Demand is rising.\n\nEmployers report shortages.", first.Trends)
	assert.True(t, first.ReleaseDate.Equal(testutil.Date(2024, 1, 1)))
	require.NotNil(t, first.ProgramNID)
	assert.Equal(t, 42, *first.ProgramNID)

	second := recs[1]
	assert.Equal(t, "FR", second.Lang)
	assert.Equal(t, "Modéré", second.Outlook)
	assert.Nil(t, second.ProgramNID)
}

func TestParseOutlookPageDefaultsLang(t *testing.T) {
	page := `<html><body>
<article class="outlook-report" data-noc="1" data-er="2" data-province="QC" data-released="2023-12-31">
<h2 class="outlook-title">T</h2><span class="outlook-rating">Limited</span>
<div class="outlook-trends"><p>Trend</p></div>
</article></body></html>`

	recs, err := ParseOutlookPage(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "EN", recs[0].Lang)
}

func TestParseOutlookPageBadDate(t *testing.T) {
	page := `<html><body>
<article class="outlook-report" data-noc="1" data-er="2" data-province="QC" data-released="31/12/2023">
<h2 class="outlook-title">T</h2><span class="outlook-rating">Limited</span>
<div class="outlook-trends"><p>Trend</p></div>
</article></body></html>`

	recs, err := ParseOutlookPage(strings.NewReader(page))
	require.Error(t, err)
	assert.Empty(t, recs)
}
