package transform

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// RewriteAction is a cell-level text rewrite.
type RewriteAction string

const (
	ActionLowercase      RewriteAction = "lowercase"
	ActionUppercase      RewriteAction = "uppercase"
	ActionTitlecase      RewriteAction = "titlecase"
	ActionTrim           RewriteAction = "trim" // also collapses inner whitespace
	ActionStripNonDigits RewriteAction = "strip_non_digits"
	ActionReplace        RewriteAction = "replace"
	ActionFillEmpty      RewriteAction = "fill_empty"
)

var rewriteActions = map[RewriteAction]bool{
	ActionLowercase:      true,
	ActionUppercase:      true,
	ActionTitlecase:      true,
	ActionTrim:           true,
	ActionStripNonDigits: true,
	ActionReplace:        true,
	ActionFillEmpty:      true,
}

// CustomColumnRewrite rewrites the text cells of one column. Typed cells
// (numbers, booleans, dates) are not touched, except that fill_empty
// replaces nulls.
type CustomColumnRewrite struct {
	Column      string
	Action      RewriteAction
	Find        string // replace only
	Replace     string // replace only
	Value       string // fill_empty only
	Description string // the instruction as the caller phrased it
}

// Validate checks the rewrite against a dataset's columns. A replace that
// does not shrink the text must not be able to form a new occurrence of the
// search text, either inside the replacement or where the replacement meets
// its neighbours.
func (r CustomColumnRewrite) Validate(columns []string) error {
	if !hasColumn(columns, r.Column) {
		return fmt.Errorf("unknown column %q", r.Column)
	}
	if !rewriteActions[r.Action] {
		return fmt.Errorf("unsupported rewrite action %q", r.Action)
	}
	switch r.Action {
	case ActionReplace:
		if r.Find == "" {
			return errors.New("replace requires text to find")
		}
		if strings.Contains(r.Replace, r.Find) {
			return errors.New("replacement must not contain the text it replaces")
		}
		if len(r.Replace) >= len(r.Find) && edgesOverlap(r.Replace, r.Find) {
			return errors.New("replacement must not combine with surrounding text to recreate the text it replaces")
		}
	case ActionFillEmpty:
		if strings.TrimSpace(r.Value) == "" {
			return errors.New("fill_empty requires a value")
		}
	}
	return nil
}

func (r CustomColumnRewrite) Kind() Kind { return KindCustomColumnRewrite }

func (r CustomColumnRewrite) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s", KindCustomColumnRewrite, r.Column, r.Action, r.Find, r.Replace, r.Value)
}

func (r CustomColumnRewrite) Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome) {
	col, ok := ds.ColumnIndex(r.Column)
	if !ok {
		return ds, Outcome{}
	}
	out, changed := ds.MapColumn(col, r.rewrite)
	return out, Outcome{Affected: changed, Columns: []string{r.Column}}
}

func (r CustomColumnRewrite) Describe(o Outcome) string {
	if r.Description != "" {
		return fmt.Sprintf("%s (%d value(s) in '%s')", r.Description, o.Affected, r.Column)
	}
	switch r.Action {
	case ActionReplace:
		return fmt.Sprintf("Replaced %q with %q in %d value(s) of '%s'", r.Find, r.Replace, o.Affected, r.Column)
	case ActionFillEmpty:
		return fmt.Sprintf("Filled %d empty value(s) in '%s' with %q", o.Affected, r.Column, r.Value)
	default:
		return fmt.Sprintf("Applied %s to %d value(s) in '%s'", r.Action, o.Affected, r.Column)
	}
}

func (r CustomColumnRewrite) rewrite(v dataset.Value) dataset.Value {
	if r.Action == ActionFillEmpty {
		if v.IsNull() {
			return dataset.String(r.Value)
		}
		return v
	}
	if v.Kind() != dataset.KindString {
		return v
	}

	s := v.Str()
	switch r.Action {
	case ActionLowercase:
		s = strings.ToLower(s)
	case ActionUppercase:
		s = strings.ToUpper(s)
	case ActionTitlecase:
		s = cases.Title(language.Und).String(s)
	case ActionTrim:
		s = strings.Join(strings.Fields(s), " ")
	case ActionStripNonDigits:
		s = strings.Map(func(c rune) rune {
			if c >= '0' && c <= '9' {
				return c
			}
			return -1
		}, s)
	case ActionReplace:
		// Validate guarantees every pass after the first shrinks s.
		for strings.Contains(s, r.Find) {
			s = strings.ReplaceAll(s, r.Find, r.Replace)
		}
	}
	return dataset.Text(s)
}

// edgesOverlap reports whether a proper suffix of repl begins find or a
// proper prefix of repl ends find.
func edgesOverlap(repl, find string) bool {
	for i := 1; i < len(repl); i++ {
		if strings.HasPrefix(find, repl[i:]) || strings.HasSuffix(find, repl[:i]) {
			return true
		}
	}
	return false
}
