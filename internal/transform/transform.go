// Package transform implements the rule-based cleaning operations.
//
// Every Operation is a deterministic, idempotent function from one Dataset
// to a new Dataset. Applying an operation twice leaves the dataset exactly as
// applying it once. Operations never fail: cells they cannot handle are left
// unchanged and tallied in the Outcome.
package transform

import (
	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// Kind names an operation variant. The values are the wire names used in
// reports and in interpreted instructions.
type Kind string

const (
	KindDropDuplicateRows   Kind = "drop_duplicate_rows"
	KindDropEmptyRows       Kind = "drop_empty_rows"
	KindCoerceColumnTypes   Kind = "coerce_column_types"
	KindStandardizeEmail    Kind = "standardize_email"
	KindStandardizePhone    Kind = "standardize_phone"
	KindStandardizeDate     Kind = "standardize_date"
	KindStandardizeCurrency Kind = "standardize_currency"
	KindCustomFilter        Kind = "custom_filter"
	KindCustomColumnRewrite Kind = "custom_column_rewrite"
)

// Kinds is the closed set of supported operation kinds.
var Kinds = []Kind{
	KindDropDuplicateRows,
	KindDropEmptyRows,
	KindCoerceColumnTypes,
	KindStandardizeEmail,
	KindStandardizePhone,
	KindStandardizeDate,
	KindStandardizeCurrency,
	KindCustomFilter,
	KindCustomColumnRewrite,
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Outcome describes what an operation did to a dataset.
type Outcome struct {
	Affected int      // rows removed or cells rewritten
	Failed   int      // cells the operation could not handle
	Columns  []string // per-column detail, operation specific
}

// Effective reports whether the operation changed the dataset.
func (o Outcome) Effective() bool { return o.Affected > 0 }

// Operation is one named, parameterized cleaning step.
type Operation interface {
	Kind() Kind

	// Key identifies the operation and its parameters. Two operations
	// with the same key are the same step.
	Key() string

	Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome)

	// Describe renders a report line for an effective outcome.
	Describe(o Outcome) string
}

// Applied pairs an operation with its accumulated outcome.
type Applied struct {
	Op      Operation
	Outcome Outcome
}

// Description returns the report line for this application.
func (a Applied) Description() string { return a.Op.Describe(a.Outcome) }

// Apply runs the operations in order and returns the resulting dataset
// together with the effective applications, in application order.
func Apply(ds *dataset.Dataset, ops []Operation) (*dataset.Dataset, []Applied) {
	var applied []Applied
	for _, op := range ops {
		var out Outcome
		ds, out = op.Apply(ds)
		if out.Effective() {
			applied = append(applied, Applied{Op: op, Outcome: out})
		}
	}
	return ds, applied
}

// Descriptions renders report lines for the applications.
func Descriptions(applied []Applied) []string {
	out := make([]string, 0, len(applied))
	for _, a := range applied {
		out = append(out, a.Description())
	}
	return out
}

// mergeColumns appends the entries of add not already in base.
func mergeColumns(base, add []string) []string {
	for _, c := range add {
		found := false
		for _, b := range base {
			if b == c {
				found = true
				break
			}
		}
		if !found {
			base = append(base, c)
		}
	}
	return base
}
