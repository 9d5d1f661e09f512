package sqlite

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "laps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndLoadLap(t *testing.T) {
	db := openTestDB(t)
	samples := testutil.SyntheticLap(1, nil)

	lapID, err := db.RecordLap("sess-1", 1, "synthetic", "gt3", samples)
	require.NoError(t, err)
	require.NotEmpty(t, lapID)

	meta, err := db.GetLap(lapID)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", meta.SessionID)
	assert.Equal(t, 1, meta.LapNumber)
	assert.Equal(t, len(samples), meta.SampleCount)
	assert.False(t, meta.IsReference)
	wantTime := float64(samples[len(samples)-1].TimestampUS-samples[0].TimestampUS) / 1e6
	assert.InDelta(t, wantTime, meta.LapTimeS, 1e-6)

	loaded, err := db.LoadLapSamples(lapID)
	require.NoError(t, err)
	require.Len(t, loaded, len(samples))
	assert.Equal(t, samples[0], loaded[0])
	assert.Equal(t, samples[len(samples)-1], loaded[len(loaded)-1])
}

func TestRecordLap_EmptyRejected(t *testing.T) {
	db := openTestDB(t)
	_, err := db.RecordLap("sess-1", 1, "synthetic", "gt3", nil)
	require.Error(t, err)
}

func TestLapDistPctNaNRoundTrip(t *testing.T) {
	db := openTestDB(t)
	samples := testutil.SyntheticLap(5, func(s float64, smp *telemetry.TelemetrySample) {
		smp.LapDistPct = math.NaN()
	})

	lapID, err := db.RecordLap("sess-1", 1, "synthetic", "gt3", samples)
	require.NoError(t, err)

	loaded, err := db.LoadLapSamples(lapID)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(loaded[0].LapDistPct))
}

func TestSetReference(t *testing.T) {
	db := openTestDB(t)
	samples := testutil.SyntheticLap(1, nil)

	lap1, err := db.RecordLap("sess-1", 1, "synthetic", "gt3", samples)
	require.NoError(t, err)
	lap2, err := db.RecordLap("sess-1", 2, "synthetic", "gt3", samples)
	require.NoError(t, err)

	require.NoError(t, db.SetReference(lap1))
	meta, err := db.GetReference("sess-1")
	require.NoError(t, err)
	assert.Equal(t, lap1, meta.ID)

	// Moving the reference clears the old one.
	require.NoError(t, db.SetReference(lap2))
	meta, err = db.GetReference("sess-1")
	require.NoError(t, err)
	assert.Equal(t, lap2, meta.ID)

	laps, err := db.ListLaps("sess-1")
	require.NoError(t, err)
	require.Len(t, laps, 2)
	assert.False(t, laps[0].IsReference)
	assert.True(t, laps[1].IsReference)
}

func TestGetReference_NoneSet(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetReference("sess-none")
	require.Error(t, err)
}

func TestAutoSetReference_PicksFastest(t *testing.T) {
	db := openTestDB(t)

	slow := testutil.SyntheticLap(1, nil)
	// A coarser step means fewer samples and a shorter span between first
	// and last timestamp, so this lap records as faster.
	fast := testutil.SyntheticLap(2, nil)

	_, err := db.RecordLap("sess-1", 1, "synthetic", "gt3", slow)
	require.NoError(t, err)
	fastID, err := db.RecordLap("sess-1", 2, "synthetic", "gt3", fast)
	require.NoError(t, err)

	meta, err := db.AutoSetReference("sess-1")
	require.NoError(t, err)
	assert.Equal(t, fastID, meta.ID)
	assert.True(t, meta.IsReference)
}

func TestLoadReferenceLap(t *testing.T) {
	db := openTestDB(t)
	samples := testutil.SyntheticLap(1, nil)

	lapID, err := db.RecordLap("sess-1", 1, "synthetic", "gt3", samples)
	require.NoError(t, err)
	require.NoError(t, db.SetReference(lapID))

	meta, loaded, err := db.LoadReferenceLap("sess-1")
	require.NoError(t, err)
	assert.Equal(t, lapID, meta.ID)
	assert.Len(t, loaded, len(samples))
}

func TestSessionsIsolated(t *testing.T) {
	db := openTestDB(t)
	samples := testutil.SyntheticLap(2, nil)

	a, err := db.RecordLap("sess-a", 1, "synthetic", "gt3", samples)
	require.NoError(t, err)
	b, err := db.RecordLap("sess-b", 1, "synthetic", "gt3", samples)
	require.NoError(t, err)

	require.NoError(t, db.SetReference(a))
	require.NoError(t, db.SetReference(b))

	metaA, err := db.GetReference("sess-a")
	require.NoError(t, err)
	metaB, err := db.GetReference("sess-b")
	require.NoError(t, err)
	assert.Equal(t, a, metaA.ID)
	assert.Equal(t, b, metaB.ID)
}
