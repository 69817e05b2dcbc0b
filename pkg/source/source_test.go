package source_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/subsearch/pkg/source"
)

func TestPagerOrdersAndPages(t *testing.T) {
	db, err := source.Open(source.DriverSQLite, filepath.Join(t.TempDir(), "subs.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE zipfiles (num INTEGER, name TEXT, content BLOB)`)
	require.NoError(t, err)
	for _, n := range []int64{9, 1, 5} {
		_, err = db.Exec(`INSERT INTO zipfiles (num, name, content) VALUES (?, ?, ?)`, n, "f.srt", []byte{byte(n)})
		require.NoError(t, err)
	}
	_, err = db.Exec(`INSERT INTO zipfiles (num, name, content) VALUES (12, NULL, NULL)`)
	require.NoError(t, err)

	pager, err := source.NewPager(db, "")
	require.NoError(t, err)

	ctx := context.Background()
	page, err := pager.Next(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Num)
	assert.Equal(t, int64(5), page[1].Num)
	assert.Equal(t, []byte{1}, page[0].Content)

	page, err = pager.Next(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(9), page[0].Num)
	assert.Equal(t, int64(12), page[1].Num)
	assert.Empty(t, page[1].Name)
	assert.Empty(t, page[1].Content)

	page, err = pager.Next(ctx, 12, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestNewPagerRejectsBadTable(t *testing.T) {
	db, err := source.Open("", filepath.Join(t.TempDir(), "subs.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = source.NewPager(db, "zipfiles; DROP TABLE x")
	assert.ErrorIs(t, err, source.ErrInvalidTable)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := source.Open("mysql", "x")
	assert.ErrorIs(t, err, source.ErrUnknownDriver)
}
