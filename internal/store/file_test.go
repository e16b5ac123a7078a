package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkpulse/linkpulse/internal"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveLink(ctx, newRecord("abc1234")))
	require.NoError(t, s.LogClick(ctx, "abc1234", internal.ClickEvent{Timestamp: 100, IP: "1.2.3.4", Country: "US"}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	record, err := reopened.GetLink(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.ClickCount)

	summary, err := reopened.GetAnalytics(ctx, "abc1234")
	require.NoError(t, err)
	require.Len(t, summary.ClickLogs, 1)
	assert.Equal(t, "US", summary.ClickLogs[0].Country)
}

func TestFileStore_DocumentLayout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveLink(ctx, newRecord("abc1234")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "links")
	assert.Contains(t, doc, "analytics")
}

func TestFileStore_DuplicateSlug(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "links.json"))
	require.NoError(t, err)

	require.NoError(t, s.SaveLink(ctx, newRecord("abc1234")))
	assert.ErrorIs(t, s.SaveLink(ctx, newRecord("abc1234")), internal.ErrSlugExists)
}

func TestFileStore_UnknownSlug(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "links.json"))
	require.NoError(t, err)

	_, err = s.GetLink(ctx, "doesnotexist")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	_, err = s.GetAnalytics(ctx, "doesnotexist")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	assert.ErrorIs(t, s.LogClick(ctx, "doesnotexist", internal.ClickEvent{}), internal.ErrLinkNotFound)
}

func TestFileStore_MissingFileStartsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "dir", "links.json"))
	require.NoError(t, err)

	_, err = s.GetLink(context.Background(), "anything")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}
