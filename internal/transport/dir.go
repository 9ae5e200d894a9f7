package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirTransport exchanges files through a local directory tree, normally
// one kept in sync with the bank by an external sftp agent. Layout:
// inbound/ for files from the bank, outbound/ for claim files, and
// receipts/ where the agent drops acknowledgement files named after the
// shipment day.
type DirTransport struct {
	root string
}

func NewDirTransport(root string) (*DirTransport, error) {
	for _, sub := range []string{"inbound", "outbound", "receipts"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("transport: create %s dir: %w", sub, err)
		}
	}
	return &DirTransport{root: root}, nil
}

func (d *DirTransport) ListFiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, "inbound"))
	if err != nil {
		return nil, fmt.Errorf("transport: list inbound: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *DirTransport) FetchFile(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.root, "inbound", filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("transport: fetch %s: %w", name, err)
	}
	return data, nil
}

func (d *DirTransport) FetchLatestFile(ctx context.Context) ([]byte, error) {
	names, err := d.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("transport: no inbound files")
	}

	latest := names[0]
	var latestMod int64
	for _, name := range names {
		info, err := os.Stat(filepath.Join(d.root, "inbound", name))
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); mod >= latestMod {
			latestMod = mod
			latest = name
		}
	}
	return d.FetchFile(ctx, latest)
}

func (d *DirTransport) SendFile(_ context.Context, data []byte, filename string) error {
	path := filepath.Join(d.root, "outbound", filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("transport: send %s: %w", filename, err)
	}
	return nil
}

func (d *DirTransport) CheckReceiptAcknowledged(_ context.Context, dateTag string) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, "receipts"))
	if err != nil {
		return false, fmt.Errorf("transport: list receipts: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), dateTag) {
			return true, nil
		}
	}
	return false, nil
}
