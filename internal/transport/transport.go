// Package transport defines the file exchange contract with the bank.
// The concrete remote client (secure file transfer) lives outside this
// module; any transport error is fatal to the current scheduled run.
package transport

import "context"

// Inbound fetches reconciliation files from the bank.
type Inbound interface {
	ListFiles(ctx context.Context) ([]string, error)
	FetchFile(ctx context.Context, name string) ([]byte, error)
	FetchLatestFile(ctx context.Context) ([]byte, error)
}

// Outbound delivers claim files and answers receipt checks.
type Outbound interface {
	SendFile(ctx context.Context, data []byte, filename string) error
	CheckReceiptAcknowledged(ctx context.Context, dateTag string) (bool, error)
}
