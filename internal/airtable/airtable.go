package airtable

import "context"

// Fields is one Airtable row keyed by column name.
type Fields map[string]any

// RecordStore reads and writes rows in a single Airtable table.
type RecordStore interface {
	CreateRecord(ctx context.Context, fields Fields) (string, error)
	UpdateRecord(ctx context.Context, recordID string, fields Fields) error
	FindRecordID(ctx context.Context, column string, value string) (string, bool, error)
}
