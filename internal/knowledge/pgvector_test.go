package knowledge

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPgVectorStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("ai"),
		postgres.WithUsername("ai"),
		postgres.WithPassword("ai"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := NewPgVectorStore(ctx, pool, "agno_assist_knowledge", testDims)
	require.NoError(t, err)

	base := NewBase("agno_assist_knowledge", store, &hashEmbedder{}, nil, nil)
	base.ChunkSize = 80
	base.ChunkOverlap = 0
	_, err = base.AddText(ctx, "Agno Docs", "", "",
		"Agents use tools to act on the world and answer user questions.\n\n"+
			"Teams coordinate several member agents under a single leader.")
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := base.Search(ctx, "teams leader", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "Teams coordinate")

	err = store.Upsert(ctx, []Document{{ID: "bad", Embedding: []float32{1}}})
	assert.Error(t, err)
}
