package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/bundle"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure/structuretest"
)

func testBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	b, err := bundle.NewBuilder(nil).Build(bundle.Input{
		Title:    "Credit Agreement",
		Document: structuretest.CreditAgreement(t),
	})
	require.NoError(t, err)
	return b
}

func exerciseArchive(t *testing.T, a Archive) {
	t.Helper()
	ctx := context.Background()
	b := testBundle(t)

	require.NoError(t, a.Save(ctx, "/docs/credit.pdf", b))
	rec, err := a.Load(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "/docs/credit.pdf", rec.Path)
	assert.Equal(t, b.Title, rec.Bundle.Title)
	assert.Equal(t, b.TOC, rec.Bundle.TOC)
	assert.False(t, rec.CreatedAt.IsZero())

	_, err = a.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryArchive(t *testing.T) {
	a := NewMemoryArchive()
	exerciseArchive(t, a)
	assert.Equal(t, 1, a.Len())
	require.NoError(t, a.Close())
}

func TestMemoryArchive_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemoryArchive().Save(ctx, "x.pdf", testBundle(t)), context.Canceled)
}

func TestBundleRepo(t *testing.T) {
	dsn := os.Getenv("MCP_COVENANTS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MCP_COVENANTS_TEST_DATABASE_URL not set")
	}
	repo, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	defer repo.Close()

	exerciseArchive(t, repo)
}
