package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FairForge/edgeplane/internal/optimizer"
	"github.com/FairForge/edgeplane/internal/prefetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ttlRec(file string, ttl int) optimizer.TTLRecommendation {
	return optimizer.TTLRecommendation{
		File:           file,
		RecommendedTTL: ttl,
		TTLHuman:       optimizer.FormatTTL(ttl),
		Reason:         "test",
		GeneratedAt:    time.Now().UTC(),
		Method:         optimizer.MethodRuleBased,
	}
}

func TestStore_ApplyTTLRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir(), 100, zap.NewNop())
	require.NoError(t, err)

	recs := []optimizer.TTLRecommendation{ttlRec("/a.js", 3600), ttlRec("/b.css", 1800)}
	require.NoError(t, store.ApplyTTL(recs))

	cfg := store.TTLConfig()
	require.Len(t, cfg, 2)
	assert.Equal(t, 3600, cfg["/a.js"].TTL)
	assert.Equal(t, "1h", cfg["/a.js"].TTLHuman)
	assert.Equal(t, 1800, cfg["/b.css"].TTL)
}

func TestStore_LastWriteWinsPerKey(t *testing.T) {
	store, err := Open(t.TempDir(), 100, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 600)}))
	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 7200)}))

	cfg := store.TTLConfig()
	require.Len(t, cfg, 1)
	assert.Equal(t, 7200, cfg["/a.js"].TTL)
}

func TestStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, 100, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 3600)}))
	require.NoError(t, store.ApplyPrefetch([]prefetch.Rule{{
		TriggerFile:   "/index.html",
		PrefetchFiles: []string{"/style.css", "/main.js"},
		Confidence:    0.9,
		Reason:        "test",
		GeneratedAt:   time.Now().UTC(),
	}}))

	reopened, err := Open(dir, 100, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3600, reopened.TTLConfig()["/a.js"].TTL)
	rule := reopened.PrefetchConfig()["/index.html"]
	assert.Equal(t, []string{"/style.css", "/main.js"}, rule.PrefetchFiles)
	assert.Equal(t, 0.9, rule.Confidence)

	history := reopened.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, ChangeTTLUpdate, history[0].Type)
	assert.Equal(t, ChangePrefetchUpdate, history[1].Type)
}

func TestStore_MissingFilesStartEmpty(t *testing.T) {
	store, err := Open(t.TempDir(), 100, zap.NewNop())
	require.NoError(t, err)

	assert.Empty(t, store.TTLConfig())
	assert.Empty(t, store.PrefetchConfig())
	assert.Empty(t, store.History(0))
}

func TestStore_HistoryRetention(t *testing.T) {
	store, err := Open(t.TempDir(), 5, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{
			ttlRec(fmt.Sprintf("/f%d.js", i), 600),
		}))
	}

	history := store.History(0)
	assert.Len(t, history, 5)

	// every mutation produced exactly one entry; only the newest survive
	assert.Equal(t, ChangeTTLUpdate, history[0].Type)
}

func TestStore_HistoryLimit(t *testing.T) {
	store, err := Open(t.TempDir(), 100, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 600)}))
	}

	assert.Len(t, store.History(2), 2)
	assert.Len(t, store.History(0), 4)
}

func TestStore_PersistFailureLeavesStateUncommitted(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, 100, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 600)}))

	// replace the TTL artifact with a non-empty directory so the
	// rename into place cannot succeed
	ttlPath := filepath.Join(dir, "ttl_config.json")
	require.NoError(t, os.Remove(ttlPath))
	require.NoError(t, os.MkdirAll(filepath.Join(ttlPath, "block"), 0750))

	err = store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/b.js", 1200)})
	require.Error(t, err)

	// the failed apply is not visible in memory; the next cycle
	// starts from the last committed state
	cfg := store.TTLConfig()
	assert.Equal(t, 600, cfg["/a.js"].TTL)
	assert.NotContains(t, cfg, "/b.js")
	assert.Len(t, store.History(0), 1)
}

func TestStore_ReadersGetCopies(t *testing.T) {
	store, err := Open(t.TempDir(), 100, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 600)}))

	cfg := store.TTLConfig()
	cfg["/a.js"] = TTLEntry{TTL: 1}
	assert.Equal(t, 600, store.TTLConfig()["/a.js"].TTL)
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, 100, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 600)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-")
	}
	assert.FileExists(t, filepath.Join(dir, "ttl_config.json"))
	assert.FileExists(t, filepath.Join(dir, "config_history.json"))
}

func TestStore_HistoryPersistFailureLeavesMapArtifactUntouched(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, 100, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/a.js", 600)}))

	before, err := os.ReadFile(filepath.Join(dir, "ttl_config.json"))
	require.NoError(t, err)

	// block the history artifact so its rename fails; the map file must
	// not be rewritten for a mutation whose history never landed
	historyPath := filepath.Join(dir, "config_history.json")
	require.NoError(t, os.Remove(historyPath))
	require.NoError(t, os.MkdirAll(filepath.Join(historyPath, "block"), 0750))

	err = store.ApplyTTL([]optimizer.TTLRecommendation{ttlRec("/b.js", 1200)})
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(dir, "ttl_config.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotContains(t, store.TTLConfig(), "/b.js")
}
