package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockTransport simulates the bank's file drop for local development and
// tests. It implements both Inbound and Outbound against an in-memory
// file map.
type MockTransport struct {
	mu       sync.Mutex
	inbound  map[string][]byte
	outbound map[string][]byte
	receipts map[string]bool

	// FailSends makes SendFile fail, exercising abort paths.
	FailSends bool
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		inbound:  make(map[string][]byte),
		outbound: make(map[string][]byte),
		receipts: make(map[string]bool),
	}
}

// AddInboundFile stages a file as if the bank had dropped it.
func (m *MockTransport) AddInboundFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound[name] = data
}

// AcknowledgeReceipt marks a date tag as receipted.
func (m *MockTransport) AcknowledgeReceipt(dateTag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[dateTag] = true
}

// SentFiles returns the names of all delivered outbound files.
func (m *MockTransport) SentFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.outbound))
	for name := range m.outbound {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SentFile returns the payload of one delivered outbound file.
func (m *MockTransport) SentFile(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.outbound[name]
	return data, ok
}

func (m *MockTransport) ListFiles(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.inbound))
	for name := range m.inbound {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockTransport) FetchFile(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.inbound[name]
	if !ok {
		return nil, fmt.Errorf("transport: file %q not found", name)
	}
	return data, nil
}

func (m *MockTransport) FetchLatestFile(ctx context.Context) ([]byte, error) {
	names, err := m.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("transport: no inbound files")
	}
	return m.FetchFile(ctx, names[len(names)-1])
}

func (m *MockTransport) SendFile(ctx context.Context, data []byte, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSends {
		return fmt.Errorf("transport: send failed for %q", filename)
	}
	m.outbound[filename] = data
	return nil
}

func (m *MockTransport) CheckReceiptAcknowledged(ctx context.Context, dateTag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipts[dateTag], nil
}
