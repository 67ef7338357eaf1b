package steps

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type stubGeo struct {
	mu      sync.Mutex
	queries []string
	answers map[string]string
	fail    map[string]bool
}

func (s *stubGeo) Country(ctx context.Context, place string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, place)
	if s.fail[place] {
		return "", errors.New("geocoder unavailable")
	}
	return s.answers[place], nil
}

func geoRecord(value any) types.SampleRecord {
	return types.SampleRecord{testPrefix + "Location": types.AlignedValue{Aligned: value, Status: types.StatusConverted}.Map()}
}

func TestGeoHarmonizeMapsValuesToCountries(t *testing.T) {
	ctx := context.Background()
	files, _ := newTestStore(t)
	require.NoError(t, files.Save(ctx, "PMC1", []types.SampleRecord{
		geoRecord("Boston: Massachusetts"),
		geoRecord("not applicable"),
		geoRecord("Atlantis"),
	}))
	require.NoError(t, files.Save(ctx, "PMC2", []types.SampleRecord{geoRecord("Boston: Massachusetts")}))

	geo := &stubGeo{answers: map[string]string{"Boston": "United States"}}
	out, err := GeoHarmonize(ctx, GeoHarmonizeDeps{Log: logger.NewNop(), Files: files, Samples: files, Geo: geo}, GeoHarmonizeInput{
		TargetLabel: "Location",
		FieldPrefix: testPrefix,
		Documents:   []string{"PMC1", "PMC2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Values)
	assert.Equal(t, 1, out.Resolved)
	assert.Equal(t, 2, out.Unresolvable)
	assert.Equal(t, 4, out.RecordsUpdated)
	assert.ElementsMatch(t, []string{"Boston", "Atlantis"}, geo.queries)

	recs, err := files.Load(ctx, "PMC1")
	require.NoError(t, err)
	boston := aligned(t, recs[0], "Location")
	assert.Equal(t, "United States", boston.Aligned)
	assert.Equal(t, "Boston: Massachusetts", boston.Converted)
	assert.Nil(t, aligned(t, recs[1], "Location").Aligned)
	assert.Equal(t, "not applicable", aligned(t, recs[1], "Location").Converted)

	dict, ok, err := files.LoadGeoDict(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, dict["Boston: Massachusetts"])
	assert.Equal(t, "United States", *dict["Boston: Massachusetts"])
	assert.Nil(t, dict["Atlantis"])
}

func TestGeoHarmonizeSkipsHarmonizedAndFailedValues(t *testing.T) {
	ctx := context.Background()
	files, _ := newTestStore(t)
	done := types.SampleRecord{testPrefix + "Location": types.AlignedValue{
		Aligned:   "Canada",
		Converted: "Toronto",
		Status:    types.StatusConverted,
	}.Map()}
	require.NoError(t, files.Save(ctx, "PMC1", []types.SampleRecord{done, geoRecord("Lyon")}))

	geo := &stubGeo{fail: map[string]bool{"Lyon": true}}
	deps := GeoHarmonizeDeps{Log: logger.NewNop(), Files: files, Samples: files, Geo: geo}
	in := GeoHarmonizeInput{TargetLabel: "Location", FieldPrefix: testPrefix, Documents: []string{"PMC1"}}
	out, err := GeoHarmonize(ctx, deps, in)
	require.NoError(t, err)
	assert.Equal(t, 1, out.LookupErrors)
	assert.Equal(t, 0, out.RecordsUpdated)
	assert.Equal(t, []string{"Lyon"}, geo.queries)

	recs, err := files.Load(ctx, "PMC1")
	require.NoError(t, err)
	assert.Equal(t, "Canada", aligned(t, recs[0], "Location").Aligned)
	assert.Equal(t, "Lyon", aligned(t, recs[1], "Location").Aligned)

	geo.fail = nil
	geo.answers = map[string]string{"Lyon": "France"}
	out, err = GeoHarmonize(ctx, deps, in)
	require.NoError(t, err)
	assert.Equal(t, 1, out.RecordsUpdated)
	recs, err = files.Load(ctx, "PMC1")
	require.NoError(t, err)
	assert.Equal(t, "France", aligned(t, recs[1], "Location").Aligned)
}

func TestGeoHarmonizeRequiresLabel(t *testing.T) {
	files, _ := newTestStore(t)
	_, err := GeoHarmonize(context.Background(), GeoHarmonizeDeps{Log: logger.NewNop(), Files: files, Samples: files, Geo: &stubGeo{}}, GeoHarmonizeInput{})
	require.Error(t, err)
}
