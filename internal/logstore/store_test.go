package logstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRecord(path string) LogRecord {
	return LogRecord{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ClientIP:    "10.0.0.1",
		RequestPath: path,
		CacheStatus: StatusHit,
		EdgeServer:  "edge1",
		StatusCode:  200,
	}
}

func TestStore_AppendGeneratesRequestID(t *testing.T) {
	store := NewStore(100, zap.NewNop())

	rec, err := store.Append(testRecord("/index.html"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.RequestID)

	found, ok := store.ByRequestID(rec.RequestID)
	require.True(t, ok)
	assert.Equal(t, "/index.html", found.RequestPath)
}

func TestStore_RejectsMalformedRecords(t *testing.T) {
	store := NewStore(100, zap.NewNop())

	_, err := store.Append(LogRecord{Timestamp: "2026-01-01T00:00:00Z"})
	assert.ErrorIs(t, err, ErrMissingPath)

	_, err = store.Append(LogRecord{RequestPath: "/a.js"})
	assert.ErrorIs(t, err, ErrMissingTimestamp)

	assert.Equal(t, 0, store.Len())
}

func TestStore_EvictsOldestAtCapacity(t *testing.T) {
	store := NewStore(5, zap.NewNop())

	for i := 0; i < 8; i++ {
		_, err := store.Append(testRecord(fmt.Sprintf("/f%d", i)))
		require.NoError(t, err)
	}

	assert.Equal(t, 5, store.Len())
	recent := store.Recent(0, "", "")
	assert.Equal(t, "/f3", recent[0].RequestPath)
	assert.Equal(t, "/f7", recent[4].RequestPath)
}

func TestStore_UnconsumedAdvancesCursor(t *testing.T) {
	store := NewStore(100, zap.NewNop())
	for i := 0; i < 6; i++ {
		_, err := store.Append(testRecord(fmt.Sprintf("/f%d", i)))
		require.NoError(t, err)
	}

	first := store.Unconsumed(4)
	require.Len(t, first, 4)
	assert.Equal(t, "/f0", first[0].RequestPath)

	second := store.Unconsumed(4)
	require.Len(t, second, 2)
	assert.Equal(t, "/f4", second[0].RequestPath)

	assert.Nil(t, store.Unconsumed(4))

	_, err := store.Append(testRecord("/f6"))
	require.NoError(t, err)
	third := store.Unconsumed(4)
	require.Len(t, third, 1)
	assert.Equal(t, "/f6", third[0].RequestPath)
}

func TestStore_RecentFilters(t *testing.T) {
	store := NewStore(100, zap.NewNop())

	hit := testRecord("/a.css")
	miss := testRecord("/b.css")
	miss.CacheStatus = StatusMiss
	miss.EdgeServer = "edge2"

	_, err := store.Append(hit)
	require.NoError(t, err)
	_, err = store.Append(miss)
	require.NoError(t, err)

	assert.Len(t, store.Recent(0, "edge2", ""), 1)
	assert.Len(t, store.Recent(0, "", StatusHit), 1)
	assert.Empty(t, store.Recent(0, "edge2", StatusHit))
}

func TestStore_Aggregate(t *testing.T) {
	store := NewStore(100, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := store.Append(testRecord("/a.js"))
		require.NoError(t, err)
	}
	miss := testRecord("/b.js")
	miss.CacheStatus = StatusMiss
	_, err := store.Append(miss)
	require.NoError(t, err)

	stats := store.Aggregate()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, "75.00%", stats.CacheHitRate)
	assert.Equal(t, int64(4), stats.EdgeServers["edge1"].Requests)
}

func TestParseTimestamp(t *testing.T) {
	cases := []string{
		"2026-08-30T12:00:00Z",
		"2026-08-30T12:00:00.123456Z",
		"2026-08-30T12:00:00",
		"2026-08-30T12:00:00.123456",
	}
	for _, ts := range cases {
		parsed, err := ParseTimestamp(ts)
		require.NoError(t, err, ts)
		assert.Equal(t, 30, parsed.Day())
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestRecordValidateRejectsOutOfRangeFields(t *testing.T) {
	base := LogRecord{
		RequestPath: "/a.html",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	rec := base
	rec.CacheStatus = "PARTIAL"
	require.ErrorIs(t, rec.Validate(), ErrInvalidCacheStatus)

	rec = base
	rec.TTL = -1
	require.ErrorIs(t, rec.Validate(), ErrNegativeField)

	rec = base
	rec.ResponseTimeMS = -0.5
	require.ErrorIs(t, rec.Validate(), ErrNegativeField)

	rec = base
	rec.BytesSent = -10
	require.ErrorIs(t, rec.Validate(), ErrNegativeField)

	rec = base
	rec.CacheStatus = StatusBypass
	require.NoError(t, rec.Validate())
}

func TestAggregateCountsDroppedRecords(t *testing.T) {
	store := NewStore(10, zap.NewNop())

	_, err := store.Append(LogRecord{
		RequestPath: "/a.html",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		CacheStatus: StatusHit,
	})
	require.NoError(t, err)
	_, err = store.Append(LogRecord{RequestPath: "/b.html"})
	require.Error(t, err)

	stats := store.Aggregate()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.Dropped)
}
