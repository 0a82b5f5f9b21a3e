package ports

import (
	"context"
	"io"
)

// TableInfo describes one stored table
type TableInfo struct {
	Name string `json:"name"`
	// Rows excludes the header; nil when the table could not be read
	Rows *int `json:"rows"`
}

// AppendLog is an append-only store for the whitelisted lab tables
type AppendLog interface {
	// Append stores one row and returns where it was written
	Append(ctx context.Context, table string, row map[string]interface{}) (string, error)
	// List reports every stored table with its row count
	List(ctx context.Context) ([]TableInfo, error)
	// Open streams a stored table as CSV; name is "<table>.csv"
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
