package boltengine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efscore/efs/kvstore"
	"github.com/efscore/efs/kvstore/boltengine"
)

func TestOpenPutGetRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efs.db")
	e := boltengine.New()
	require.NoError(t, e.Open(path))
	defer e.Close()

	require.NoError(t, e.WriteBatch([]kvstore.BatchOp{
		{Kind: kvstore.OpPut, Key: []byte("B/1/0"), Value: []byte("block0")},
		{Kind: kvstore.OpPut, Key: []byte("B/1/1"), Value: []byte("block1")},
	}))

	v, ok, err := e.Get([]byte("B/1/0"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("block0"), v)

	it, err := e.Range([]byte("B/1/"), kvstore.PrefixUpperBound([]byte("B/1/")))
	require.NoError(t, err)
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"B/1/0", "B/1/1"}, keys)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efs.db")
	e := boltengine.New()
	require.NoError(t, e.Open(path))
	require.NoError(t, e.WriteBatch([]kvstore.BatchOp{{Kind: kvstore.OpPut, Key: []byte("k"), Value: []byte("v")}}))
	require.NoError(t, e.Close())

	e2 := boltengine.New()
	require.NoError(t, e2.Open(path))
	defer e2.Close()
	v, ok, err := e2.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestRemoveCleansUpFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efs.db")
	e := boltengine.New()
	require.NoError(t, e.Open(path))
	require.NoError(t, e.Close())
	require.NoError(t, boltengine.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

var _ kvstore.Engine = (*boltengine.Engine)(nil)
