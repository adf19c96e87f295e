package collection

import "context"

// Store abstracts record persistence. The engine reads the full record set
// once at the start of a run, recomputes it in memory, and writes it back
// once at the end; implementations must make Save atomic so a failed write
// never leaves a partial store behind.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}
