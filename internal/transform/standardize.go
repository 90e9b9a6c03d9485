package transform

import (
	"fmt"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// Standardize rewrites every parseable cell of one column into the
// canonical form of a semantic kind:
//
//	email     trimmed, lowercased address
//	phone     (555) 123-4567, +1 (555) 123-4567, or digits
//	date      a date value, rendered YYYY-MM-DD
//	currency  a number rounded to cents, symbols and separators removed
//
// Unparseable cells are left as they are and counted as failures.
type Standardize struct {
	Semantic dataset.Semantic
	Column   string
}

// StandardizeEmail returns the email standardization for a column.
func StandardizeEmail(column string) Standardize {
	return Standardize{Semantic: dataset.SemanticEmail, Column: column}
}

// StandardizePhone returns the phone standardization for a column.
func StandardizePhone(column string) Standardize {
	return Standardize{Semantic: dataset.SemanticPhone, Column: column}
}

// StandardizeDate returns the date standardization for a column.
func StandardizeDate(column string) Standardize {
	return Standardize{Semantic: dataset.SemanticDate, Column: column}
}

// StandardizeCurrency returns the currency standardization for a column.
func StandardizeCurrency(column string) Standardize {
	return Standardize{Semantic: dataset.SemanticCurrency, Column: column}
}

// StandardizeFor returns the standardization for a semantic kind, or false
// for generic columns.
func StandardizeFor(sem dataset.Semantic, column string) (Standardize, bool) {
	switch sem {
	case dataset.SemanticEmail, dataset.SemanticPhone, dataset.SemanticDate, dataset.SemanticCurrency:
		return Standardize{Semantic: sem, Column: column}, true
	default:
		return Standardize{}, false
	}
}

func (s Standardize) Kind() Kind { return Kind("standardize_" + string(s.Semantic)) }

func (s Standardize) Key() string { return string(s.Kind()) + ":" + s.Column }

func (s Standardize) Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome) {
	col, ok := ds.ColumnIndex(s.Column)
	if !ok {
		return ds, Outcome{}
	}

	out, changed := ds.MapColumn(col, s.standardize)

	failed := 0
	for _, v := range out.Column(col) {
		if !s.Semantic.Valid(v) {
			failed++
		}
	}
	return out, Outcome{Affected: changed, Failed: failed, Columns: []string{s.Column}}
}

func (s Standardize) Describe(o Outcome) string {
	msg := fmt.Sprintf("Standardized %d %s value(s) in '%s'", o.Affected, s.Semantic, s.Column)
	if o.Failed > 0 {
		msg += fmt.Sprintf("; %d value(s) could not be parsed and were left unchanged", o.Failed)
	}
	return msg
}

func (s Standardize) standardize(v dataset.Value) dataset.Value {
	if v.Kind() != dataset.KindString {
		return v
	}
	raw := v.Str()

	switch s.Semantic {
	case dataset.SemanticEmail:
		if email, ok := dataset.ParseEmail(raw); ok {
			return dataset.String(email)
		}
	case dataset.SemanticPhone:
		if phone, ok := dataset.ParsePhone(raw); ok {
			return dataset.String(phone)
		}
	case dataset.SemanticDate:
		if t, ok := dataset.ParseDate(raw); ok {
			return dataset.Date(t)
		}
	case dataset.SemanticCurrency:
		if amount, ok := dataset.ParseCurrency(raw); ok {
			return dataset.Number(amount.Round(2).InexactFloat64())
		}
	}
	return v
}
