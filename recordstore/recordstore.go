package recordstore

import "context"

// Row is one record of a tabular dataset. Cells are addressed by header
// name; column order is never part of the contract.
type Row struct {
	Num   int // 1-based, stable for the lifetime of the row
	Cells map[string]string
}

// Get returns the cell value for a column, "" when absent.
func (r Row) Get(column string) string {
	return r.Cells[column]
}

// Dataset is a named, header-defined tabular dataset. Updates are
// cell-granular and last-write-wins; there is no multi-cell atomicity.
type Dataset interface {
	// EnsureHeaders creates the dataset with the given header on first
	// use. Existing datasets are left untouched.
	EnsureHeaders(ctx context.Context, headers []string) error

	// Rows returns every data row in row-number order.
	Rows(ctx context.Context) ([]Row, error)

	// Update writes the given cells of an existing row.
	Update(ctx context.Context, num int, cells map[string]string) error

	// Append adds a row and returns its assigned row number.
	Append(ctx context.Context, cells map[string]string) (int, error)
}
