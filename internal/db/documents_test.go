package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentStore interface {
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) (*Document, error)
	Query(ctx context.Context, filter map[string]string) ([]Document, error)
}

func exerciseStore(t *testing.T, store documentStore, prefix string) {
	ctx := context.Background()
	account := prefix + "alice"

	doc, err := store.Get(ctx, "ledger:"+account)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Put(ctx, "ledger:"+account, []byte(`{"expenses":[]}`), map[string]string{"account": account, "kind": "ledger"}))
	require.NoError(t, store.Put(ctx, "ledger:"+account, []byte(`{"expenses":[1]}`), map[string]string{"account": account, "kind": "ledger"}))
	require.NoError(t, store.Put(ctx, "digest:"+account+":1", []byte(`{"text":"a"}`), map[string]string{"account": account, "kind": "digest"}))
	require.NoError(t, store.Put(ctx, "digest:"+prefix+"bob:1", []byte(`{"text":"b"}`), map[string]string{"account": prefix + "bob", "kind": "digest"}))

	doc, err = store.Get(ctx, "ledger:"+account)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.JSONEq(t, `{"expenses":[1]}`, string(doc.Body))
	assert.Equal(t, "ledger", doc.Metadata["kind"])

	docs, err := store.Query(ctx, map[string]string{"account": account, "kind": "digest"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "digest:"+account+":1", docs[0].Key)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(), "")
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Put(ctx, "k", []byte(`{}`), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	database, err := New(ctx, url)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.RunMigrations(ctx))

	exerciseStore(t, database, uuid.NewString()+"-")
}
