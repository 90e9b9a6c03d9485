package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// FilterOperator is a comparison operator for row filters.
type FilterOperator string

const (
	OpContains   FilterOperator = "contains"
	OpEquals     FilterOperator = "eq"
	OpNotEquals  FilterOperator = "neq"
	OpStartsWith FilterOperator = "starts"
	OpEndsWith   FilterOperator = "ends"
	OpGreaterEq  FilterOperator = "gte"
	OpLessEq     FilterOperator = "lte"
	OpGreater    FilterOperator = "gt"
	OpLess       FilterOperator = "lt"
	OpIn         FilterOperator = "in"    // Value is a comma-separated list
	OpEmpty      FilterOperator = "empty" // Value is ignored
)

var filterOperators = map[FilterOperator]string{
	OpContains:   "contains",
	OpEquals:     "equals",
	OpNotEquals:  "does not equal",
	OpStartsWith: "starts with",
	OpEndsWith:   "ends with",
	OpGreaterEq:  ">=",
	OpLessEq:     "<=",
	OpGreater:    ">",
	OpLess:       "<",
	OpIn:         "is one of",
	OpEmpty:      "is empty",
}

// FilterMode says what happens to matching rows.
type FilterMode string

const (
	ModeDrop FilterMode = "drop"
	ModeKeep FilterMode = "keep"
)

// CustomFilter removes rows by a predicate on one column. In drop mode
// matching rows are removed; in keep mode every non-matching row is.
//
// Text comparisons ignore case. Ordered comparisons use numbers when both
// sides are numeric, dates when both sides are dates, and never match
// otherwise.
type CustomFilter struct {
	Column      string
	Operator    FilterOperator
	Value       string
	Mode        FilterMode
	Description string // the predicate as the caller phrased it
}

// Validate checks the filter against a dataset's columns.
func (f CustomFilter) Validate(columns []string) error {
	if !hasColumn(columns, f.Column) {
		return fmt.Errorf("unknown column %q", f.Column)
	}
	if _, ok := filterOperators[f.Operator]; !ok {
		return fmt.Errorf("unsupported operator %q", f.Operator)
	}
	if f.Mode != ModeDrop && f.Mode != ModeKeep {
		return fmt.Errorf("unsupported filter mode %q", f.Mode)
	}
	if f.Operator != OpEmpty && strings.TrimSpace(f.Value) == "" {
		return errors.New("filter value is required")
	}
	return nil
}

func (f CustomFilter) Kind() Kind { return KindCustomFilter }

func (f CustomFilter) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", KindCustomFilter, f.Column, f.Operator, f.Value, f.Mode)
}

func (f CustomFilter) Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome) {
	col, ok := ds.ColumnIndex(f.Column)
	if !ok {
		return ds, Outcome{}
	}
	out, removed := ds.Filter(func(r dataset.Row) bool {
		match := f.matches(r[col])
		if f.Mode == ModeKeep {
			return match
		}
		return !match
	})
	return out, Outcome{Affected: removed, Columns: []string{f.Column}}
}

func (f CustomFilter) Describe(o Outcome) string {
	predicate := f.Description
	if predicate == "" {
		predicate = f.predicate()
	}
	if f.Mode == ModeKeep {
		return fmt.Sprintf("Kept only rows where %s (removed %d rows)", predicate, o.Affected)
	}
	return fmt.Sprintf("Removed %d rows where %s", o.Affected, predicate)
}

func (f CustomFilter) predicate() string {
	if f.Operator == OpEmpty {
		return fmt.Sprintf("'%s' is empty", f.Column)
	}
	return fmt.Sprintf("'%s' %s %q", f.Column, filterOperators[f.Operator], f.Value)
}

func (f CustomFilter) matches(v dataset.Value) bool {
	if f.Operator == OpEmpty {
		return v.IsNull()
	}
	if v.IsNull() {
		return false
	}

	cell := strings.ToLower(strings.TrimSpace(v.String()))
	want := strings.ToLower(strings.TrimSpace(f.Value))

	switch f.Operator {
	case OpContains:
		return strings.Contains(cell, want)
	case OpEquals:
		if c, ok := compare(v, f.Value); ok {
			return c == 0
		}
		return cell == want
	case OpNotEquals:
		if c, ok := compare(v, f.Value); ok {
			return c != 0
		}
		return cell != want
	case OpStartsWith:
		return strings.HasPrefix(cell, want)
	case OpEndsWith:
		return strings.HasSuffix(cell, want)
	case OpIn:
		for _, item := range strings.Split(want, ",") {
			if strings.TrimSpace(item) == cell {
				return true
			}
		}
		return false
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		c, ok := compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case OpGreater:
			return c > 0
		case OpGreaterEq:
			return c >= 0
		case OpLess:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

// compare orders a cell against a literal, numerically or by date.
func compare(v dataset.Value, literal string) (int, bool) {
	if rhs, ok := dataset.ParseNumber(literal); ok {
		var lhs float64
		switch v.Kind() {
		case dataset.KindNumber:
			lhs = v.Num()
		case dataset.KindString:
			n, ok := dataset.ParseNumber(v.Str())
			if !ok {
				return 0, false
			}
			lhs = n
		default:
			return 0, false
		}
		return cmpFloat(lhs, rhs), true
	}

	if rhs, ok := dataset.ParseDate(literal); ok {
		lhs := v.Time()
		if v.Kind() == dataset.KindString {
			t, ok := dataset.ParseDate(v.Str())
			if !ok {
				return 0, false
			}
			lhs = t
		} else if v.Kind() != dataset.KindDate {
			return 0, false
		}
		return lhs.Compare(rhs), true
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
