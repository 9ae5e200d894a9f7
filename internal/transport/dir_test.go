package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirTransportRoundTrip(t *testing.T) {
	root := t.TempDir()
	tr, err := NewDirTransport(root)
	require.NoError(t, err)
	ctx := context.Background()

	names, err := tr.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, os.WriteFile(filepath.Join(root, "inbound", "ocr-b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "inbound", "ocr-a.txt"), []byte("first"), 0o644))

	names, err = tr.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ocr-a.txt", "ocr-b.txt"}, names)

	data, err := tr.FetchFile(ctx, "ocr-a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	require.NoError(t, tr.SendFile(ctx, []byte("claims"), "claims-20211004-0000001.txt"))
	sent, err := os.ReadFile(filepath.Join(root, "outbound", "claims-20211004-0000001.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("claims"), sent)
}

func TestDirTransportReceipts(t *testing.T) {
	root := t.TempDir()
	tr, err := NewDirTransport(root)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := tr.CheckReceiptAcknowledged(ctx, "20211004")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(root, "receipts", "receipt-20211004.txt"), []byte("ok"), 0o644))

	ok, err = tr.CheckReceiptAcknowledged(ctx, "20211004")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.CheckReceiptAcknowledged(ctx, "20211005")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirTransportMissingFile(t *testing.T) {
	tr, err := NewDirTransport(t.TempDir())
	require.NoError(t, err)

	_, err = tr.FetchFile(context.Background(), "nope.txt")
	require.Error(t, err)

	_, err = tr.FetchLatestFile(context.Background())
	require.Error(t, err)
}
