package transform

import (
	"fmt"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// DropDuplicateRows removes rows that exactly match an earlier row across
// all columns. The first occurrence is kept.
type DropDuplicateRows struct{}

func (DropDuplicateRows) Kind() Kind { return KindDropDuplicateRows }
func (DropDuplicateRows) Key() string { return string(KindDropDuplicateRows) }

func (DropDuplicateRows) Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome) {
	seen := make(map[string]bool, ds.Len())
	out, removed := ds.Filter(func(r dataset.Row) bool {
		key := r.Key()
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
	return out, Outcome{Affected: removed}
}

func (DropDuplicateRows) Describe(o Outcome) string {
	return fmt.Sprintf("Removed %d duplicate rows", o.Affected)
}

// DropEmptyRows removes rows in which every cell is null.
type DropEmptyRows struct{}

func (DropEmptyRows) Kind() Kind { return KindDropEmptyRows }
func (DropEmptyRows) Key() string { return string(KindDropEmptyRows) }

func (DropEmptyRows) Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome) {
	out, removed := ds.Filter(func(r dataset.Row) bool { return !r.IsEmpty() })
	return out, Outcome{Affected: removed}
}

func (DropEmptyRows) Describe(o Outcome) string {
	return fmt.Sprintf("Removed %d completely empty rows", o.Affected)
}
