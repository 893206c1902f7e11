package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/memory"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

func TestOpenCache_Memory(t *testing.T) {
	c, err := openCache(context.Background(), domain.CacheSettings{
		Backend:   domain.CacheBackendMemory,
		TTL:       time.Hour,
		HighWater: 10,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	got, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, time.Hour, c.TTL())
}

func TestOpenCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := openCache(context.Background(), domain.CacheSettings{
		Backend:  domain.CacheBackendRedis,
		RedisURL: "redis://" + mr.Addr(),
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("medguard:k"))
}

func TestOpenCache_RedisUnreachable(t *testing.T) {
	_, err := openCache(context.Background(), domain.CacheSettings{
		Backend:  domain.CacheBackendRedis,
		RedisURL: "not a url",
		TTL:      time.Hour,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open redis cache")
}

func TestOpenPatientStore_Memory(t *testing.T) {
	store, err := openPatientStore(context.Background(), domain.PatientSettings{Backend: domain.PatientBackendMemory})
	require.NoError(t, err)
	defer store.Close()

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, len(memory.DemoPatients()))
}

func TestOpenPatientStore_SQLiteSeedsOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := openPatientStore(ctx, domain.PatientSettings{Backend: domain.PatientBackendSQLite, SQLiteDir: dir})
	require.NoError(t, err)
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, len(memory.DemoPatients()))
	require.NoError(t, store.Close())

	// Reopening an already populated store does not duplicate or reseed.
	store, err = openPatientStore(ctx, domain.PatientSettings{Backend: domain.PatientBackendSQLite, SQLiteDir: dir})
	require.NoError(t, err)
	defer store.Close()
	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, again)
}

func TestWire_DefaultsAndReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[patients]
backend = "memory"
`), 0600))

	a, err := wire(context.Background(), dir)
	require.NoError(t, err)
	defer a.Close()

	svc := a.services()
	assert.NotNil(t, svc.Interaction)
	assert.NotNil(t, svc.Patient)
	assert.NotNil(t, svc.Settings)
	assert.NotNil(t, svc.OnServe)
	assert.Equal(t, domain.DefaultPipelineTimeout, a.orchestrator.PipelineSettings().Timeout)

	require.NoError(t, a.config.Set("pipeline.timeout_ms", 9000))
	a.reload()
	assert.Equal(t, 9*time.Second, a.orchestrator.PipelineSettings().Timeout)

	// A stage timeout longer than the pipeline timeout is rejected.
	require.NoError(t, a.config.Set("pipeline.stage_timeout_ms", 20000))
	a.reload()
	assert.Equal(t, 9*time.Second, a.orchestrator.PipelineSettings().Timeout)
	assert.Equal(t, domain.DefaultStageTimeout, a.orchestrator.PipelineSettings().StageTimeout)
}

func TestWire_ServeStartsAndStops(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[patients]
backend = "memory"
`), 0600))

	a, err := wire(context.Background(), dir)
	require.NoError(t, err)
	defer a.Close()

	stop, err := a.serve(context.Background())
	require.NoError(t, err)
	stop()
}

func TestWire_KnowledgeOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[patients]
backend = "memory"
`), 0600))

	t.Run("valid file loads", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, knowledgeFile), []byte(`
drugs:
  - generic_name: warfarin
    classes: [anticoagulant]
`), 0600))

		a, err := wire(context.Background(), dir)
		require.NoError(t, err)
		defer a.Close()
	})

	t.Run("invalid file fails startup", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, knowledgeFile), []byte("drugs: [{classes: [x]}]"), 0600))

		_, err := wire(context.Background(), dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load knowledge base")
	})
}
