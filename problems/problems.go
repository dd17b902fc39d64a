// Package problems resolves human problem codes to judge problem ids
// via the read-only catalog dataset.
package problems

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/justuju/flowjudge/recordstore"
)

const (
	colCode = "Problem Code"
	colID   = "Problem ID"
)

// ErrNotFound reports a problem code with no catalog entry. The judge
// stage escalates this to CANNOT_PROCESS with a diagnostic verdict.
type ErrNotFound struct {
	Code string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("problem code %q not found in catalog", e.Code)
}

// ID is a judge problem identifier. Whether a numeric-looking id is
// submitted as a JSON number is a catalog-level decision, not a guess
// made per call site.
type ID struct {
	raw     string
	numeric bool
}

// NewID wraps a judge problem id that was resolved elsewhere.
func NewID(raw string, numeric bool) ID {
	return ID{raw: raw, numeric: numeric}
}

func (id ID) String() string { return id.raw }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		if _, err := strconv.Atoi(id.raw); err == nil {
			return []byte(id.raw), nil
		}
	}
	return json.Marshal(id.raw)
}

// CodeKey derives the catalog lookup key from the raw problem field:
// the first space-separated token. "FCP045 - Loops" yields "FCP045".
func CodeKey(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Catalog looks problem codes up in the catalog dataset.
type Catalog struct {
	dataset       recordstore.Dataset
	coerceNumeric bool
}

func NewCatalog(dataset recordstore.Dataset, coerceNumeric bool) *Catalog {
	return &Catalog{dataset: dataset, coerceNumeric: coerceNumeric}
}

// Lookup resolves a raw problem field to a judge problem id.
func (c *Catalog) Lookup(ctx context.Context, raw string) (ID, error) {
	key := CodeKey(raw)
	if key == "" {
		return ID{}, &ErrNotFound{Code: raw}
	}

	rows, err := c.dataset.Rows(ctx)
	if err != nil {
		return ID{}, fmt.Errorf("failed to read problem catalog: %w", err)
	}
	for _, row := range rows {
		if row.Get(colCode) == key {
			return ID{raw: row.Get(colID), numeric: c.coerceNumeric}, nil
		}
	}
	return ID{}, &ErrNotFound{Code: key}
}
