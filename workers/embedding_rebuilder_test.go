package workers

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/missingpersons/database"
	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/models"
)

// contentExtractor returns the embedding registered for an exact image payload
type contentExtractor struct {
	faces map[string]models.Embedding
}

func (c *contentExtractor) ExtractAll(ctx context.Context, image []byte) ([]models.Embedding, error) {
	if bytes.Equal(image, []byte("corrupt")) {
		return nil, media.ErrInvalidImage
	}
	if e, ok := c.faces[string(image)]; ok {
		return []models.Embedding{e}, nil
	}
	return nil, nil
}

func (c *contentExtractor) ExtractPrimary(ctx context.Context, image []byte) (models.Embedding, bool, error) {
	all, err := c.ExtractAll(ctx, image)
	if err != nil {
		return nil, false, err
	}
	e, ok := media.PrimaryEmbedding(all)
	return e, ok, nil
}

func (c *contentExtractor) ModelName() string { return "content_model" }
func (c *contentExtractor) Close() error      { return nil }

func filled(v float32) models.Embedding {
	e := make(models.Embedding, models.EmbeddingDimension)
	for i := range e {
		e[i] = v
	}
	return e
}

type rebuildEnv struct {
	gdb       *gorm.DB
	sqlDB     *sql.DB
	store     *media.LocalStorage
	processor *media.Processor
}

func newRebuildEnv(t *testing.T) *rebuildEnv {
	t.Helper()
	dir := t.TempDir()
	gdb, err := database.InitGormDB(filepath.Join(dir, "test.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(gdb))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store, err := media.NewLocalStorage(filepath.Join(dir, "media"), map[media.AssetType]string{
		media.AssetTypeUpload:   "uploads",
		media.AssetTypeSighting: "sightings",
	}, zap.NewNop())
	require.NoError(t, err)

	return &rebuildEnv{gdb: gdb, sqlDB: sqlDB, store: store, processor: media.NewProcessor(store, zap.NewNop())}
}

func (e *rebuildEnv) addPerson(t *testing.T, name string, image []byte, stale models.Embedding) *models.Person {
	t.Helper()
	filename := name + ".jpg"
	if image != nil {
		_, err := e.store.Save(media.AssetTypeUpload, filename, bytes.NewReader(image))
		require.NoError(t, err)
	}
	p := &models.Person{Name: name, ImageFilename: filename, CreatedAt: 1, UpdatedAt: 1}
	p.SetEmbedding(stale, "old_model")
	require.NoError(t, e.gdb.Create(p).Error)
	return p
}

func (e *rebuildEnv) reload(t *testing.T, id uint) models.Person {
	t.Helper()
	var p models.Person
	require.NoError(t, e.gdb.First(&p, id).Error)
	return p
}

func TestEmbeddingRebuilder_RunOutcomes(t *testing.T) {
	env := newRebuildEnv(t)
	extractor := &contentExtractor{faces: map[string]models.Embedding{"face-a": filled(0.5)}}

	withFace := env.addPerson(t, "with-face", []byte("face-a"), filled(0.1))
	noFace := env.addPerson(t, "no-face", []byte("blank"), filled(0.2))
	missing := env.addPerson(t, "missing", nil, filled(0.3))
	corrupt := env.addPerson(t, "corrupt", []byte("corrupt"), filled(0.4))

	var mu sync.Mutex
	var progressed int
	rebuilder := NewEmbeddingRebuilder(env.sqlDB, extractor, env.processor, 3, zap.NewNop())
	summary, err := rebuilder.Run(context.Background(), func(RebuildResult) {
		mu.Lock()
		progressed++
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Cleared)
	assert.Equal(t, 1, summary.MissingImage)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 4, progressed)

	got := env.reload(t, withFace.ID)
	assert.Equal(t, filled(0.5), got.GetEmbedding())
	require.NotNil(t, got.EmbeddingModel)
	assert.Equal(t, "content_model", *got.EmbeddingModel)

	got = env.reload(t, noFace.ID)
	assert.Nil(t, got.GetEmbedding())
	assert.Nil(t, got.EmbeddingModel)

	// skipped rows keep their previous embedding
	got = env.reload(t, missing.ID)
	assert.Equal(t, filled(0.3), got.GetEmbedding())
	got = env.reload(t, corrupt.ID)
	assert.Equal(t, filled(0.4), got.GetEmbedding())
}

func TestEmbeddingRebuilder_Idempotent(t *testing.T) {
	env := newRebuildEnv(t)
	extractor := &contentExtractor{faces: map[string]models.Embedding{
		"face-a": filled(0.5),
		"face-b": filled(-0.25),
	}}
	a := env.addPerson(t, "a", []byte("face-a"), nil)
	b := env.addPerson(t, "b", []byte("face-b"), filled(0.9))
	c := env.addPerson(t, "c", []byte("blank"), filled(0.7))

	snapshot := func() map[uint][]byte {
		out := map[uint][]byte{}
		for _, id := range []uint{a.ID, b.ID, c.ID} {
			out[id] = env.reload(t, id).EmbeddingData
		}
		return out
	}

	rebuilder := NewEmbeddingRebuilder(env.sqlDB, extractor, env.processor, 2, zap.NewNop())
	_, err := rebuilder.Run(context.Background(), nil)
	require.NoError(t, err)
	first := snapshot()

	_, err = rebuilder.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, snapshot())
	assert.Nil(t, first[c.ID])
}

func TestEmbeddingRebuilder_CancelledContext(t *testing.T) {
	env := newRebuildEnv(t)
	env.addPerson(t, "a", []byte("face-a"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rebuilder := NewEmbeddingRebuilder(env.sqlDB, &contentExtractor{}, env.processor, 1, zap.NewNop())
	_, err := rebuilder.Run(ctx, nil)
	assert.Error(t, err)
}
