package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	a := New()
	uri, err := a.Put(context.Background(), "src/2026-02-01/abc.html", "text/html", []byte("<html>"))
	require.NoError(t, err)
	assert.Equal(t, "memory://src/2026-02-01/abc.html", uri)

	got, ok := a.Get("src/2026-02-01/abc.html")
	require.True(t, ok)
	assert.Equal(t, []byte("<html>"), got)
	assert.Equal(t, 1, a.Len())
}

func TestPutEmptyKey(t *testing.T) {
	a := New()
	_, err := a.Put(context.Background(), "", "text/html", []byte("x"))
	assert.Error(t, err)
}

func TestPutCopiesData(t *testing.T) {
	a := New()
	data := []byte("original")
	_, err := a.Put(context.Background(), "k", "", data)
	require.NoError(t, err)

	data[0] = 'X'
	got, _ := a.Get("k")
	assert.Equal(t, []byte("original"), got)
}
