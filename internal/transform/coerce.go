package transform

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

// CoercionThreshold is the share of a column's non-null values that must
// parse as one type before the column is converted.
const CoercionThreshold = 0.7

// CoerceColumnTypes converts text columns whose values are mostly numbers
// or booleans into typed values. Cells that do not parse stay as text and
// are counted as failures.
// Columns named in Skip are left alone.
type CoerceColumnTypes struct {
	Skip []string
}

func (CoerceColumnTypes) Kind() Kind { return KindCoerceColumnTypes }
func (CoerceColumnTypes) Key() string { return string(KindCoerceColumnTypes) }

func (c CoerceColumnTypes) Apply(ds *dataset.Dataset) (*dataset.Dataset, Outcome) {
	var total Outcome
	for col, name := range ds.Columns() {
		if hasColumn(c.Skip, name) {
			continue
		}
		target := coercionTarget(ds.Column(col))
		if target == dataset.KindNull {
			continue
		}

		var next *dataset.Dataset
		var changed int
		next, changed = ds.MapColumn(col, func(v dataset.Value) dataset.Value {
			return coerce(v, target)
		})
		if changed == 0 {
			continue
		}
		ds = next
		total.Affected += changed
		total.Columns = append(total.Columns, fmt.Sprintf("%s: %s", name, target))

		for _, v := range ds.Column(col) {
			if v.Kind() == dataset.KindString {
				total.Failed++
			}
		}
	}
	return ds, total
}

func (CoerceColumnTypes) Describe(o Outcome) string {
	msg := fmt.Sprintf("Converted %d value(s) to typed values (%s)", o.Affected, strings.Join(o.Columns, ", "))
	if o.Failed > 0 {
		msg += fmt.Sprintf("; %d value(s) could not be converted", o.Failed)
	}
	return msg
}

// coercionTarget picks the kind a column should be converted to, or
// KindNull when it should be left alone. Values that already have the
// target kind count toward the threshold.
func coercionTarget(values []dataset.Value) dataset.Kind {
	nonNull, numbers, bools, text := 0, 0, 0, 0
	for _, v := range values {
		switch v.Kind() {
		case dataset.KindNull:
			continue
		case dataset.KindNumber:
			numbers++
		case dataset.KindBool:
			bools++
		case dataset.KindString:
			if _, ok := dataset.ParseNumber(v.Str()); ok {
				numbers++
				text++
			} else if _, ok := dataset.ParseBool(v.Str()); ok {
				bools++
				text++
			}
		}
		nonNull++
	}

	if text == 0 || nonNull == 0 {
		return dataset.KindNull
	}
	switch {
	case float64(numbers)/float64(nonNull) > CoercionThreshold:
		return dataset.KindNumber
	case float64(bools)/float64(nonNull) > CoercionThreshold:
		return dataset.KindBool
	default:
		return dataset.KindNull
	}
}

func coerce(v dataset.Value, target dataset.Kind) dataset.Value {
	if v.Kind() != dataset.KindString {
		return v
	}
	switch target {
	case dataset.KindNumber:
		if f, ok := dataset.ParseNumber(v.Str()); ok {
			return dataset.Number(f)
		}
	case dataset.KindBool:
		if b, ok := dataset.ParseBool(v.Str()); ok {
			return dataset.Bool(b)
		}
	}
	return v
}
