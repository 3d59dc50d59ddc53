package filing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, rel, body string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDirSource_FetchWithSidecar(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "ACME/k1.htm", "<p>hello</p>")
	write(t, dir, "ACME/k1.json", `{"doc_type":"10-Q","period_end":"2025-06-30","filed_date":"2025-08-01","company":"Acme Corp"}`)

	doc, err := NewDirSource(dir, 1<<20).Fetch(context.Background(), "acme", "k1")
	require.NoError(t, err)
	assert.True(t, doc.Markup)
	assert.Equal(t, "<p>hello</p>", string(doc.Body))
	assert.Equal(t, "ACME", doc.Ref.Subject)
	assert.Equal(t, "k1", doc.Ref.FilingKey)
	assert.Equal(t, "10-Q", doc.Ref.DocType)
	assert.Equal(t, "Acme Corp", doc.Ref.Company)
	assert.True(t, strings.HasPrefix(doc.Ref.SourceURL, "file://"))
}

func TestDirSource_PlainText(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "ACME/k2.txt", "plain")

	doc, err := NewDirSource(dir, 0).Fetch(context.Background(), "ACME", "k2")
	require.NoError(t, err)
	assert.False(t, doc.Markup)
	assert.Equal(t, "", doc.Ref.DocType)
}

func TestDirSource_Errors(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "ACME/big.htm", strings.Repeat("x", 100))
	write(t, dir, "ACME/bad.htm", "ok")
	write(t, dir, "ACME/bad.json", "{not json")
	src := NewDirSource(dir, 10)

	_, err := src.Fetch(context.Background(), "ACME", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(context.Background(), "ACME", "../ACME/big")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(context.Background(), "ACME", "big")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, IsRetryable(err))

	_, err = src.Fetch(context.Background(), "ACME", "bad")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "metadata", fe.Op)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, "ACME", "bad")
	assert.True(t, IsRetryable(err))
}
