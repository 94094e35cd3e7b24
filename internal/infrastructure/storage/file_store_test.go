package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReceiptStore_Save(t *testing.T) {
	dir := t.TempDir()

	t.Run("WithBaseURL", func(t *testing.T) {
		store, err := NewFileReceiptStore(dir, "https://pay.example/")
		require.NoError(t, err)

		url, err := store.Save(context.Background(), "receipt_order_1.pdf", []byte("%PDF-1.3"))
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example/receipts/receipt_order_1.pdf", url)

		data, err := os.ReadFile(filepath.Join(dir, "receipt_order_1.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.3", string(data))
	})

	t.Run("WithoutBaseURL", func(t *testing.T) {
		store, err := NewFileReceiptStore(dir, "")
		require.NoError(t, err)

		url, err := store.Save(context.Background(), "r.pdf", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "r.pdf"), url)
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		store, err := NewFileReceiptStore(dir, "")
		require.NoError(t, err)

		_, err = store.Save(context.Background(), "../escape.pdf", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		store, err := NewFileReceiptStore(dir, "")
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = store.Save(ctx, "late.pdf", []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
