package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	err = store.Set("test_key", "test_value")
	require.NoError(t, err)

	val, ok := store.Get("test_key")
	assert.True(t, ok)
	assert.Equal(t, "test_value", val)
}

func TestConfigStore_GetString(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("string_key", "hello world"))
	assert.Equal(t, "hello world", store.GetString("string_key"))

	// Missing key
	assert.Equal(t, "", store.GetString("missing"))

	// Wrong type
	require.NoError(t, store.Set("int_key", 42))
	assert.Equal(t, "", store.GetString("int_key"))
}

func TestConfigStore_GetInt(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("int_key", 42))
	assert.Equal(t, 42, store.GetInt("int_key"))
	assert.Equal(t, 0, store.GetInt("missing"))
}

func TestConfigStore_GetBool(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("bool_key", true))
	assert.True(t, store.GetBool("bool_key"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_GetFloat(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("float_key", 0.75))
	assert.Equal(t, 0.75, store.GetFloat("float_key"))

	// Whole numbers round-trip through TOML as integers
	require.NoError(t, store.Set("whole_key", 2))
	require.NoError(t, store.Load())
	assert.Equal(t, 2.0, store.GetFloat("whole_key"))

	assert.Equal(t, 0.0, store.GetFloat("missing"))
}

func TestConfigStore_PersistsAcrossInstances(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("embedding.backend", "ollama"))

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "ollama", reopened.GetString("embedding.backend"))
}

func TestConfigStore_LoadFlattensNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := "[chunk_size]\nblog = 500\nnotes = 400\n\n[embedding]\nmodel = \"nomic-embed-text\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 500, store.GetInt("chunk_size.blog"))
	assert.Equal(t, 400, store.GetInt("chunk_size.notes"))
	assert.Equal(t, "nomic-embed-text", store.GetString("embedding.model"))
}

func TestConfigStore_LoadMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Load())
	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_LoadMalformedTOML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"),
		[]byte("not [ valid toml"), 0o600))

	_, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
}

func TestChunkPolicy_DefaultsWithoutOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	policy, err := ChunkPolicy(store)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultChunkPolicy(), policy)
}

func TestChunkPolicy_AppliesOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	content := "[chunk_size]\nblog = 500\nmicroblog = 100\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	policy, err := ChunkPolicy(store)
	require.NoError(t, err)
	assert.Equal(t, 500, policy.ChunkSize(domain.SourceBlog))
	assert.Equal(t, 100, policy.ChunkSize(domain.SourceMicroblog))
	// Untouched kinds keep their defaults
	assert.Equal(t, 800, policy.ChunkSize(domain.SourceNotes))
}

func TestChunkPolicy_RejectsNegativeOverride(t *testing.T) {
	tmpDir := t.TempDir()
	content := "[chunk_size]\nblog = -1\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, err = ChunkPolicy(store)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
