package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/metrics"
	"outlook_service/internal/app/model"
	"outlook_service/internal/app/testutil"
)

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return New(testutil.DB(t), testutil.Logger(t), opts...)
}

func seedDimensions(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertUnitGroup(ctx, "1234", "Software engineers")
	require.NoError(t, err)
	_, err = s.UpsertEconomicRegion(ctx, "5920", "Toronto")
	require.NoError(t, err)
}

func outlookInput(trends string) OutlookInput {
	return OutlookInput{
		NOC:                "1234",
		EconomicRegionCode: "5920",
		Title:              "Outlook Title",
		Category:           "Good",
		Trends:             trends,
		ReleaseDate:        testutil.Date(2024, 1, 1),
		Province:           "ON",
	}
}

func TestRecordOutlookScenario(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)

	first, err := s.RecordOutlook(ctx, outlookInput("Demand is rising."))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, model.DefaultLang, first.Lang)
	assert.Equal(t, TrendsHash("Demand is rising."), first.TrendsHash)

	_, err = s.RecordOutlook(ctx, outlookInput("Demand is rising."))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	second, err := s.RecordOutlook(ctx, outlookInput("Demand is rising fast."))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.TrendsHash, second.TrendsHash)

	rows, err := s.QueryOutlooks(ctx, model.OutlookFilter{NOC: "1234"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// the rejected duplicate must not have touched the stored row
	stored, err := s.GetOutlook(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demand is rising.", stored.Trends)
	assert.True(t, stored.ReleaseDate.Equal(testutil.Date(2024, 1, 1)))
}

func TestRecordOutlookDedupKeyFields(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)
	_, err := s.UpsertEconomicRegion(ctx, "3510", "Ottawa")
	require.NoError(t, err)

	base := outlookInput("Demand is rising.")
	_, err = s.RecordOutlook(ctx, base)
	require.NoError(t, err)

	variants := map[string]func(in *OutlookInput){
		"region":   func(in *OutlookInput) { in.EconomicRegionCode = "3510" },
		"lang":     func(in *OutlookInput) { in.Lang = "FR" },
		"date":     func(in *OutlookInput) { in.ReleaseDate = testutil.Date(2024, 7, 1) },
		"province": func(in *OutlookInput) { in.Province = "QC" },
		"title":    func(in *OutlookInput) { in.Title = "Other Title" },
		"category": func(in *OutlookInput) { in.Category = "Fair" },
	}
	for name, mutate := range variants {
		in := base
		mutate(&in)
		_, err := s.RecordOutlook(ctx, in)
		assert.NoError(t, err, name)
	}

	// a change outside the key is still a duplicate
	in := base
	nid := 42
	area, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Computing"})
	require.NoError(t, err)
	_, err = s.UpsertProgram(ctx, ProgramInput{NID: nid, Title: "Software Development", Credential: model.CredentialDiploma, ProgramAreaID: area.ID})
	require.NoError(t, err)
	in.ProgramNID = &nid
	_, err = s.RecordOutlook(ctx, in)
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
}

func TestRecordOutlookReferences(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)

	in := outlookInput("x")
	in.NOC = "9999"
	_, err := s.RecordOutlook(ctx, in)
	assert.True(t, errors.Is(err, apperr.ErrReference), "unknown noc: %v", err)

	in = outlookInput("x")
	in.EconomicRegionCode = "0000"
	_, err = s.RecordOutlook(ctx, in)
	assert.True(t, errors.Is(err, apperr.ErrReference), "unknown region: %v", err)

	in = outlookInput("x")
	missing := 777
	in.ProgramNID = &missing
	_, err = s.RecordOutlook(ctx, in)
	assert.True(t, errors.Is(err, apperr.ErrReference), "unknown program: %v", err)

	rows, err := s.QueryOutlooks(ctx, model.OutlookFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecordOutlookValidation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)

	cases := map[string]func(in *OutlookInput){
		"no title":     func(in *OutlookInput) { in.Title = "" },
		"no province":  func(in *OutlookInput) { in.Province = "" },
		"no date":      func(in *OutlookInput) { in.ReleaseDate = time.Time{} },
		"bad lang":     func(in *OutlookInput) { in.Lang = "not a tag" },
		"blank trends": func(in *OutlookInput) { in.Trends = "  \n\t" },
		"blank title":  func(in *OutlookInput) { in.Title = "   " },
		"blank noc":    func(in *OutlookInput) { in.NOC = " " },
	}
	for name, mutate := range cases {
		in := outlookInput("x")
		mutate(&in)
		_, err := s.RecordOutlook(ctx, in)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "%s: %v", name, err)
	}
}

func TestRecordOutlookConcurrentDuplicates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordOutlook(ctx, outlookInput("Demand is rising."))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
	rows, err := s.QueryOutlooks(ctx, model.OutlookFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueryOutlooksFilters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)
	_, err := s.UpsertEconomicRegion(ctx, "3510", "Ottawa")
	require.NoError(t, err)

	for i, in := range []OutlookInput{
		outlookInput("a"),
		func() OutlookInput { in := outlookInput("b"); in.Lang = "FR"; return in }(),
		func() OutlookInput {
			in := outlookInput("c")
			in.EconomicRegionCode = "3510"
			in.ReleaseDate = testutil.Date(2024, 6, 1)
			return in
		}(),
		func() OutlookInput { in := outlookInput("d"); in.Province = "QC"; return in }(),
	} {
		_, err := s.RecordOutlook(ctx, in)
		require.NoError(t, err, "row %d", i)
	}

	from := testutil.Date(2024, 3, 1)
	to := testutil.Date(2024, 1, 1)
	cases := []struct {
		name string
		f    model.OutlookFilter
		want int
	}{
		{"all", model.OutlookFilter{}, 4},
		{"region", model.OutlookFilter{EconomicRegionCode: "5920"}, 3},
		{"lang", model.OutlookFilter{Lang: "EN"}, 3},
		{"province", model.OutlookFilter{Province: "QC"}, 1},
		{"from", model.OutlookFilter{ReleasedFrom: &from}, 1},
		{"to inclusive", model.OutlookFilter{ReleasedTo: &to}, 3},
		{"combined", model.OutlookFilter{NOC: "1234", EconomicRegionCode: "5920", Lang: "EN", Province: "ON"}, 1},
		{"page", model.OutlookFilter{Limit: 2, Offset: 3}, 1},
		{"unknown", model.OutlookFilter{NOC: "0000"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := s.QueryOutlooks(ctx, tc.f)
			require.NoError(t, err)
			assert.Len(t, rows, tc.want)
		})
	}

	_, err = s.QueryOutlooks(ctx, model.OutlookFilter{Limit: -1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = s.QueryOutlooks(ctx, model.OutlookFilter{ReleasedFrom: &from, ReleasedTo: &to})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestGetOutlookNotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.GetOutlook(context.Background(), 12345)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTrendsHashStable(t *testing.T) {
	assert.Equal(t, TrendsHash("Demand is rising."), TrendsHash("Demand is rising."))
	assert.NotEqual(t, TrendsHash("Demand is rising."), TrendsHash("Demand is rising!"))
	assert.Len(t, TrendsHash(""), 64)
}

func TestUnitGroupAndSections(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ug, err := s.UpsertUnitGroup(ctx, "1234", "Software engineers")
	require.NoError(t, err)
	assert.Equal(t, "Software engineers", ug.Occupation)
	ug, err = s.UpsertUnitGroup(ctx, "1234", "Software engineers and designers")
	require.NoError(t, err)
	assert.Equal(t, "Software engineers and designers", ug.Occupation)

	_, err = s.UpsertUnitGroup(ctx, "", "x")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	for _, title := range []string{"Duties", "Requirements", "Additional information"} {
		_, err := s.AddSection(ctx, "1234", title, []string{title + " item"})
		require.NoError(t, err)
	}
	_, err = s.AddSection(ctx, "1234", "Duties", nil)
	assert.True(t, errors.Is(err, apperr.ErrConflict), "duplicate section: %v", err)
	_, err = s.AddSection(ctx, "9999", "Duties", nil)
	assert.True(t, errors.Is(err, apperr.ErrReference), "unknown noc: %v", err)

	sections, err := s.QuerySections(ctx, "1234")
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "Duties", sections[0].Title)
	assert.Equal(t, "Requirements", sections[1].Title)
	assert.Equal(t, []string{"Additional information item"}, []string(sections[2].Items))

	empty, err := s.QuerySections(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.GetUnitGroup(ctx, "9999")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteRestrictedByOutlooks(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedDimensions(t, s)
	_, err := s.AddSection(ctx, "1234", "Duties", []string{"build things"})
	require.NoError(t, err)

	area, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Computing"})
	require.NoError(t, err)
	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 42, Title: "Software Development", Credential: model.CredentialDiploma, ProgramAreaID: area.ID})
	require.NoError(t, err)

	in := outlookInput("Demand is rising.")
	nid := 42
	in.ProgramNID = &nid
	_, err = s.RecordOutlook(ctx, in)
	require.NoError(t, err)

	assert.True(t, errors.Is(s.DeleteUnitGroup(ctx, "1234"), apperr.ErrConflict))
	assert.True(t, errors.Is(s.DeleteEconomicRegion(ctx, "5920"), apperr.ErrConflict))
	assert.True(t, errors.Is(s.DeleteProgram(ctx, 42), apperr.ErrConflict))
	assert.True(t, errors.Is(s.DeleteProgramArea(ctx, area.ID), apperr.ErrConflict))

	_, err = s.GetUnitGroup(ctx, "1234")
	require.NoError(t, err)
	sections, err := s.QuerySections(ctx, "1234")
	require.NoError(t, err)
	assert.Len(t, sections, 1, "refused delete must leave sections in place")

	// unreferenced rows can go, sections with their unit group
	_, err = s.UpsertUnitGroup(ctx, "5678", "Web designers")
	require.NoError(t, err)
	_, err = s.AddSection(ctx, "5678", "Duties", nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteUnitGroup(ctx, "5678"))
	sections, err = s.QuerySections(ctx, "5678")
	require.NoError(t, err)
	assert.Empty(t, sections)

	assert.True(t, errors.Is(s.DeleteUnitGroup(ctx, "5678"), apperr.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteEconomicRegion(ctx, "0000"), apperr.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteProgram(ctx, 999), apperr.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteProgramArea(ctx, 999), apperr.ErrNotFound))

	empty, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Unused"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteProgramArea(ctx, empty.ID))
}

func TestUpsertProgramCredential(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	area, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Computing"})
	require.NoError(t, err)

	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 42, Title: "Software Development", Credential: "Masters", ProgramAreaID: area.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	_, err = s.GetProgram(ctx, 42)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "invalid program must not be stored")
}

func TestUpsertProgram(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	area, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Computing"})
	require.NoError(t, err)

	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 42, Title: "Software Development", Credential: model.CredentialDiploma, ProgramAreaID: area.ID + 100})
	assert.True(t, errors.Is(err, apperr.ErrReference), "unknown area: %v", err)
	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 42, Title: "Software Development", Credential: model.CredentialDiploma})
	assert.True(t, errors.Is(err, apperr.ErrReference), "missing area: %v", err)
	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 0, Title: "x", Credential: model.CredentialDiploma, ProgramAreaID: area.ID})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "zero nid: %v", err)

	duration := "2 years"
	p, err := s.UpsertProgram(ctx, ProgramInput{
		NID:           42,
		Title:         "Software Development",
		Duration:      &duration,
		Keywords:      []string{"coding"},
		NOC:           []string{"1234"},
		Credential:    model.CredentialDiploma,
		ProgramAreaID: area.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, p.NID)
	assert.Equal(t, []string{"1234"}, []string(p.NOC))
	assert.NotNil(t, p.KnownNOCGroups)

	p, err = s.UpsertProgram(ctx, ProgramInput{NID: 42, Title: "Software Engineering", Credential: model.CredentialDegree, ProgramAreaID: area.ID})
	require.NoError(t, err)
	assert.Equal(t, "Software Engineering", p.Title)
	assert.Equal(t, model.CredentialDegree, p.Credential)
	assert.Nil(t, p.Duration)

	list, err := s.ListPrograms(ctx, area.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 42, list[0].NID)
}

func TestUpsertProgramWideIDs(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	area, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Computing"})
	require.NoError(t, err)

	const nid = 1 << 31
	p, err := s.UpsertProgram(ctx, ProgramInput{NID: nid, Title: "Data Science", Credential: model.CredentialDegree, ProgramAreaID: area.ID})
	require.NoError(t, err)
	assert.Equal(t, nid, p.NID)

	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 43, Title: "x", Credential: model.CredentialDegree, ProgramAreaID: math.MaxUint64})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "area id out of range: %v", err)
	_, err = s.UpsertProgramArea(ctx, ProgramAreaInput{ID: math.MaxUint64, Title: "Trades"})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "pinned id out of range: %v", err)

	_, err = s.UpsertProgram(ctx, ProgramInput{NID: 44, Title: "   ", Credential: model.CredentialDegree, ProgramAreaID: area.ID})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "blank title: %v", err)
	_, err = s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "\t"})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "blank area title: %v", err)
}

func TestUpsertProgramArea(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	pinned, err := s.UpsertProgramArea(ctx, ProgramAreaInput{ID: 40, Title: "Trades"})
	require.NoError(t, err)
	assert.Equal(t, uint(40), pinned.ID)

	again, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Trades"})
	require.NoError(t, err)
	assert.Equal(t, pinned.ID, again.ID)

	_, err = s.UpsertProgramArea(ctx, ProgramAreaInput{ID: 41, Title: "Trades"})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "title pinned elsewhere: %v", err)
	_, err = s.UpsertProgramArea(ctx, ProgramAreaInput{ID: 40, Title: "Health"})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "id taken: %v", err)
	_, err = s.UpsertProgramArea(ctx, ProgramAreaInput{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	generated, err := s.UpsertProgramArea(ctx, ProgramAreaInput{Title: "Business"})
	require.NoError(t, err)
	assert.Greater(t, generated.ID, uint(40))

	areas, err := s.ListProgramAreas(ctx)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "Business", areas[0].Title)

	_, err = s.GetProgramArea(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestEconomicRegions(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.UpsertEconomicRegion(ctx, "5920", "Toronto")
	require.NoError(t, err)
	er, err := s.UpsertEconomicRegion(ctx, "5920", "Toronto Region")
	require.NoError(t, err)
	assert.Equal(t, "Toronto Region", er.Name)
	_, err = s.UpsertEconomicRegion(ctx, "3510", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	list, err := s.ListEconomicRegions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetEconomicRegion(ctx, "3510")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestExpiredContextIsTransient(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := s.GetUnitGroup(ctx, "1234")
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err), "got %v", err)
}

func TestStoreRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := setupStore(t, WithMetrics(m))
	ctx := context.Background()

	_, err := s.GetUnitGroup(ctx, "1234")
	require.Error(t, err)
	_, err = s.UpsertUnitGroup(ctx, "1234", "Software engineers")
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.StoreOperations.WithLabelValues("GetUnitGroup", string(apperr.NotFound))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.StoreOperations.WithLabelValues("UpsertUnitGroup", "ok")))
}
