package variants

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/embeddings"
	"github.com/wmarzella/ronin/internal/storage"
)

func setupVariants(t *testing.T) (*Service, *storage.Manager, string) {
	t.Helper()

	logger := common.GetLogger()
	dir := t.TempDir()

	manager, err := storage.NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(dir, "test.db")},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	embedder, err := embeddings.NewService(context.Background(), &common.EmbeddingConfig{}, logger)
	require.NoError(t, err)

	resumeDir := filepath.Join(dir, "resumes")
	require.NoError(t, os.MkdirAll(resumeDir, 0755))

	return NewService(resumeDir, manager, embedder, logger), manager, resumeDir
}

func writeResume(t *testing.T, dir string, archetype models.Archetype, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, string(archetype)+".md"), []byte(content), 0644))
}

func TestSyncCreatesVariantsFromFiles(t *testing.T) {
	svc, manager, dir := setupVariants(t)
	ctx := context.Background()

	writeResume(t, dir, models.ArchetypeBuilder, "built data platforms on snowflake and dbt")
	writeResume(t, dir, models.ArchetypeFixer, "rescued failing pipelines")

	changed, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Archetype{models.ArchetypeBuilder, models.ArchetypeFixer}, changed)

	variant, err := manager.Variants().GetVariant(ctx, models.ArchetypeBuilder)
	require.NoError(t, err)
	assert.NotEmpty(t, variant.CurrentVersion)
	assert.NotEmpty(t, variant.Embedding)
	assert.Equal(t, embeddings.FallbackModelName, variant.EmbeddingModel)
	assert.Nil(t, variant.LastRewritten)
}

func TestSyncIsStableForUnchangedContent(t *testing.T) {
	svc, _, dir := setupVariants(t)
	ctx := context.Background()

	writeResume(t, dir, models.ArchetypeBuilder, "built data platforms")
	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	changed, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestSyncDetectsRewrite(t *testing.T) {
	svc, manager, dir := setupVariants(t)
	ctx := context.Background()

	writeResume(t, dir, models.ArchetypeBuilder, "built data platforms")
	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	before, err := manager.Variants().GetVariant(ctx, models.ArchetypeBuilder)
	require.NoError(t, err)

	writeResume(t, dir, models.ArchetypeBuilder, "built lakehouse platforms on databricks")
	changed, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Archetype{models.ArchetypeBuilder}, changed)

	after, err := manager.Variants().GetVariant(ctx, models.ArchetypeBuilder)
	require.NoError(t, err)
	assert.NotEqual(t, before.CurrentVersion, after.CurrentVersion)
	assert.NotNil(t, after.LastRewritten)
}

func TestCurrentVersionHashesContent(t *testing.T) {
	svc, _, dir := setupVariants(t)

	writeResume(t, dir, models.ArchetypeBuilder, "same content")
	writeResume(t, dir, models.ArchetypeFixer, "same content")

	builderVersion, err := svc.CurrentVersion(filepath.Join(dir, "builder.md"))
	require.NoError(t, err)
	fixerVersion, err := svc.CurrentVersion(filepath.Join(dir, "fixer.md"))
	require.NoError(t, err)

	assert.Equal(t, builderVersion, fixerVersion)
	assert.Len(t, builderVersion, 16)
}

func TestMarkRewrittenRequiresFile(t *testing.T) {
	svc, _, _ := setupVariants(t)
	err := svc.MarkRewritten(context.Background(), models.ArchetypeOperator)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
