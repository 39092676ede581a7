package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
)

func testRun(ttl time.Duration) *Run {
	l := &layout.Layout{
		Params: layout.DefaultParams(),
		Functions: []*layout.FunctionClusterInfo{{
			Name:           "foo",
			Key:            1,
			Clusters:       []layout.Cluster{{BBIndexes: []int{0, 2, 1}}},
			OriginalScore:  layout.Score{Intra: 10},
			OptimizedScore: layout.Score{Intra: 30},
		}},
		Cold: []layout.ColdPlaceholder{{Name: "baz", Key: 10, ColdClusterLayoutIndex: 1}},
	}
	run := NewRun("abc123", l, ttl)
	run.Artifacts = map[string][]byte{"clusters": []byte("!foo\n!!0 2 1\n")}
	return run
}

func TestNewRun(t *testing.T) {
	run := testRun(time.Hour)
	assert.NoError(t, ValidateID(run.ID))
	assert.Equal(t, 2, run.Functions)
	assert.Equal(t, int64(30), run.Totals.OptimizedScore.Intra)
	assert.Equal(t, layout.DefaultParams(), run.Params)
	assert.False(t, run.IsExpired())

	s := run.Summary()
	assert.Nil(t, s.Layout)
	assert.Nil(t, s.Artifacts)
	assert.NotNil(t, run.Layout, "Summary must not modify the run")
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("9b2b7c4e-8f0b-4a8e-9a4e-2f1d8c6b5a31"))
	for _, id := range []string{"", "../etc/passwd", "run-1"} {
		err := ValidateID(id)
		require.Error(t, err, id)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	run := testRun(time.Hour)
	require.NoError(t, s.Put(ctx, run))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Artifacts, got.Artifacts)
	require.NotNil(t, got.Layout)
	assert.Equal(t, []int{0, 2, 1}, got.Layout.Functions[0].Clusters[0].BBIndexes)
	assert.Equal(t, run.Totals, got.Totals)

	require.NoError(t, s.Delete(ctx, run.ID))
	_, err = s.Get(ctx, run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.Is(err, errors.ErrCodeRunNotFound))

	assert.NoError(t, s.Delete(ctx, run.ID), "deleting twice is fine")
}

func TestFileStoreRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(ctx, "../secret")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, s.Put(ctx, &Run{ID: "x"}), ErrInvalidID)
	assert.ErrorIs(t, s.Delete(ctx, "x"), ErrInvalidID)
}

func TestFileStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	live := testRun(time.Hour)
	expired := testRun(-time.Minute)
	require.NoError(t, s.Put(ctx, live))
	require.NoError(t, s.Put(ctx, expired))

	_, err = s.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, live.ID, runs[0].ID)

	n, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(filepath.Join(s.Path(), expired.ID+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var ids []string
	for i := range 3 {
		run := testRun(time.Hour)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		run.ExpiresAt = time.Now().Add(time.Hour)
		require.NoError(t, s.Put(ctx, run))
		ids = append(ids, run.ID)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Path(), "junk.json"), []byte("{"), 0o600))

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Nil(t, runs[0].Layout, "List returns summaries")
}

func TestMongoConfig(t *testing.T) {
	_, err := MongoConfig{}.withDefaults()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))

	_, err = MongoConfig{URI: "redis://localhost"}.withDefaults()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))

	cfg, err := MongoConfig{URI: "mongodb://localhost:27017"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, "blockorder", cfg.Database)
	assert.Equal(t, "runs", cfg.Collection)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("BLOCKORDER_TEST_MONGO")
	if uri == "" {
		t.Skip("BLOCKORDER_TEST_MONGO not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoConfig{URI: uri, Database: "blockorder_test"})
	require.NoError(t, err)
	defer s.Close()

	run := testRun(time.Hour)
	require.NoError(t, s.Put(ctx, run))
	defer s.Delete(ctx, run.ID)

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Artifacts, got.Artifacts)
	assert.Equal(t, run.Totals, got.Totals)

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}
