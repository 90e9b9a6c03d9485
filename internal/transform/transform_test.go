package transform

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/dataset"
)

func s(v string) dataset.Value  { return dataset.String(v) }
func n(v float64) dataset.Value { return dataset.Number(v) }
func null() dataset.Value       { return dataset.Null() }

// ----------------------------------------------------------------------------
// Base Set Tests
// ----------------------------------------------------------------------------

func TestApplyBase_DuplicatesAndEmptyRows(t *testing.T) {
	ds := dataset.MustNew([]string{"name", "city"}, []dataset.Row{
		{s("Alice"), s("Boston")},
		{s("Bob"), s("Denver")},
		{s("Carol"), s("Austin")},
		{s("Alice"), s("Boston")},
		{s("Dave"), s("Seattle")},
		{null(), null()},
		{s("Erin"), s("Portland")},
		{s("Bob"), s("Denver")},
		{s("Frank"), s("Chicago")},
		{s("Grace"), s("Miami")},
	})

	out, applied := ApplyBase(ds)

	if got := out.Len(); got != 7 {
		t.Errorf("Len = %d, want 7", got)
	}
	if ds.Len() != 10 {
		t.Errorf("input dataset was modified: Len = %d, want 10", ds.Len())
	}

	got := Descriptions(applied)
	want := []string{"Removed 2 duplicate rows", "Removed 1 completely empty rows"}
	if len(got) != len(want) {
		t.Fatalf("Descriptions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Descriptions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestApplyBase_Idempotent(t *testing.T) {
	ds := dataset.MustNew([]string{"email", "phone", "joined", "price", "age"}, []dataset.Row{
		{s("Alice@Example.com"), s("555-123-4567"), s("2024-01-15"), s("$10.00"), s("30")},
		{s("alice@example.com"), s("(555) 123-4567"), s("Jan 15, 2024"), s("$10"), s("30")},
		{s("bob@example.com"), s("555.987.6543"), s("2024-02-01"), s("$1,200.50"), s("41")},
		{null(), null(), null(), null(), null()},
	})

	once, applied := ApplyBase(ds)
	twice, again := ApplyBase(once)

	if !once.Equal(twice) {
		t.Error("second ApplyBase changed the dataset")
	}
	if len(again) != 0 {
		t.Errorf("second ApplyBase reported operations: %v", Descriptions(again))
	}

	if got := once.Len(); got != 2 {
		t.Errorf("Len = %d, want 2 (standardized rows collapse into duplicates)", got)
	}
	if got := once.At(0, 1).Str(); got != "(555) 123-4567" {
		t.Errorf("phone = %q, want %q", got, "(555) 123-4567")
	}
	if got := once.At(1, 3); got.Kind() != dataset.KindNumber || got.Num() != 1200.5 {
		t.Errorf("price = %v (%s), want number 1200.5", got, got.Kind())
	}
	if got := once.At(0, 2); got.Kind() != dataset.KindDate || got.String() != "2024-01-15" {
		t.Errorf("joined = %v (%s), want date 2024-01-15", got, got.Kind())
	}
	if got := once.At(1, 4); got.Kind() != dataset.KindNumber {
		t.Errorf("age kind = %s, want number", got.Kind())
	}

	descs := strings.Join(Descriptions(applied), "\n")
	for _, want := range []string{"duplicate rows", "empty rows", "email", "phone", "date", "currency", "typed values"} {
		if !strings.Contains(descs, want) {
			t.Errorf("Descriptions missing %q:\n%s", want, descs)
		}
	}
}

func TestApplyBase_CleanDatasetIsNoOp(t *testing.T) {
	ds := dataset.MustNew([]string{"name", "age"}, []dataset.Row{
		{s("Alice"), n(30)},
		{s("Bob"), n(41)},
	})

	out, applied := ApplyBase(ds)

	if len(applied) != 0 {
		t.Errorf("applied = %v, want none", Descriptions(applied))
	}
	if !out.Equal(ds) {
		t.Error("clean dataset changed")
	}
}

// ----------------------------------------------------------------------------
// Operation Tests
// ----------------------------------------------------------------------------

func TestCoerceColumnTypes(t *testing.T) {
	ds := dataset.MustNew([]string{"age", "active", "zip", "note"}, []dataset.Row{
		{s("30"), s("yes"), s("02134"), s("hello")},
		{s("41"), s("No"), s("02139"), s("12")},
		{s("unknown"), s("TRUE"), s("10001"), s("world")},
		{s("25"), null(), s("94105"), null()},
	})

	out, outcome := CoerceColumnTypes{}.Apply(ds)

	if got := out.At(0, 0); got.Kind() != dataset.KindNumber || got.Num() != 30 {
		t.Errorf("age[0] = %v (%s), want number 30", got, got.Kind())
	}
	if got := out.At(2, 0); got.Kind() != dataset.KindString {
		t.Errorf("age[2] kind = %s, want string left unchanged", got.Kind())
	}
	if got := out.At(1, 1); got.Kind() != dataset.KindBool || got.Truth() {
		t.Errorf("active[1] = %v (%s), want false", got, got.Kind())
	}
	if got := out.At(0, 2); got.Kind() != dataset.KindString {
		t.Errorf("zip with leading zero kind = %s, want string", got.Kind())
	}
	if got := out.At(1, 3); got.Kind() != dataset.KindString {
		t.Errorf("mostly-text column was coerced: note[1] kind = %s", got.Kind())
	}
	if outcome.Failed != 1 {
		t.Errorf("Failed = %d, want 1", outcome.Failed)
	}

	_, second := CoerceColumnTypes{}.Apply(out)
	if second.Effective() {
		t.Errorf("second coercion changed %d cells", second.Affected)
	}
}

func TestStandardize_LeavesFailuresUntouched(t *testing.T) {
	ds := dataset.MustNew([]string{"phone"}, []dataset.Row{
		{s("555-123-4567")},
		{s("ask front desk")},
		{null()},
	})

	out, outcome := StandardizePhone("phone").Apply(ds)

	if outcome.Affected != 1 || outcome.Failed != 1 {
		t.Errorf("outcome = %+v, want Affected 1, Failed 1", outcome)
	}
	if got := out.At(1, 0).Str(); got != "ask front desk" {
		t.Errorf("unparseable cell = %q, want unchanged", got)
	}
	if !strings.Contains(StandardizePhone("phone").Describe(outcome), "could not be parsed") {
		t.Errorf("description does not mention failures: %q", StandardizePhone("phone").Describe(outcome))
	}
}

func TestCustomFilter(t *testing.T) {
	ds := dataset.MustNew([]string{"name", "age", "status"}, []dataset.Row{
		{s("Alice"), n(30), s("active")},
		{s("Bob"), n(41), s("Inactive")},
		{s("Carol"), s("n/a"), s("active")},
		{s("Dave"), n(55), null()},
	})

	tests := []struct {
		name     string
		filter   CustomFilter
		wantRows int
	}{
		{
			name:     "drop numeric greater than",
			filter:   CustomFilter{Column: "age", Operator: OpGreater, Value: "40", Mode: ModeDrop},
			wantRows: 2,
		},
		{
			name:     "keep equals ignores case",
			filter:   CustomFilter{Column: "status", Operator: OpEquals, Value: "ACTIVE", Mode: ModeKeep},
			wantRows: 2,
		},
		{
			name:     "drop empty",
			filter:   CustomFilter{Column: "status", Operator: OpEmpty, Mode: ModeDrop},
			wantRows: 3,
		},
		{
			name:     "drop in list",
			filter:   CustomFilter{Column: "name", Operator: OpIn, Value: "alice, bob", Mode: ModeDrop},
			wantRows: 2,
		},
		{
			name:     "non-numeric cell never matches ordered comparison",
			filter:   CustomFilter{Column: "age", Operator: OpLess, Value: "100", Mode: ModeKeep},
			wantRows: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.filter.Validate(ds.Columns()); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}

			out, outcome := tt.filter.Apply(ds)
			if got := out.Len(); got != tt.wantRows {
				t.Errorf("Len = %d, want %d", got, tt.wantRows)
			}
			if outcome.Affected != ds.Len()-tt.wantRows {
				t.Errorf("Affected = %d, want %d", outcome.Affected, ds.Len()-tt.wantRows)
			}

			again, second := tt.filter.Apply(out)
			if second.Effective() || !again.Equal(out) {
				t.Error("filter is not idempotent")
			}
		})
	}
}

func TestCustomFilter_Validate(t *testing.T) {
	columns := []string{"name"}

	invalid := []CustomFilter{
		{Column: "missing", Operator: OpEquals, Value: "x", Mode: ModeDrop},
		{Column: "name", Operator: "regex", Value: "x", Mode: ModeDrop},
		{Column: "name", Operator: OpEquals, Value: "x", Mode: "flip"},
		{Column: "name", Operator: OpEquals, Value: " ", Mode: ModeDrop},
	}
	for _, f := range invalid {
		if err := f.Validate(columns); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", f)
		}
	}
}

func TestCustomColumnRewrite(t *testing.T) {
	ds := dataset.MustNew([]string{"name", "code"}, []dataset.Row{
		{s("  alice   SMITH "), s("AB-12")},
		{s("bob jones"), null()},
		{n(7), s("CD-34")},
	})

	tests := []struct {
		name    string
		rewrite CustomColumnRewrite
		row     int
		col     int
		want    string
	}{
		{"trim collapses whitespace", CustomColumnRewrite{Column: "name", Action: ActionTrim}, 0, 0, "alice SMITH"},
		{"titlecase", CustomColumnRewrite{Column: "name", Action: ActionTitlecase}, 1, 0, "Bob Jones"},
		{"uppercase skips numbers", CustomColumnRewrite{Column: "name", Action: ActionUppercase}, 2, 0, "7"},
		{"strip non digits", CustomColumnRewrite{Column: "code", Action: ActionStripNonDigits}, 0, 1, "12"},
		{"replace", CustomColumnRewrite{Column: "code", Action: ActionReplace, Find: "-", Replace: ""}, 2, 1, "CD34"},
		{"fill empty", CustomColumnRewrite{Column: "code", Action: ActionFillEmpty, Value: "UNKNOWN"}, 1, 1, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rewrite.Validate(ds.Columns()); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}

			out, _ := tt.rewrite.Apply(ds)
			if got := out.At(tt.row, tt.col).String(); got != tt.want {
				t.Errorf("cell = %q, want %q", got, tt.want)
			}

			again, second := tt.rewrite.Apply(out)
			if second.Effective() || !again.Equal(out) {
				t.Error("rewrite is not idempotent")
			}
		})
	}
}

func TestCustomColumnRewrite_RejectsGrowingReplace(t *testing.T) {
	tests := []struct {
		name          string
		find, replace string
	}{
		{"contains search text", "a", "aa"},
		{"suffix starts search text", "ab", "bb"},
		{"prefix ends search text", "ab", "aa"},
		{"same length overlap", "xy", "yx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CustomColumnRewrite{Column: "name", Action: ActionReplace, Find: tt.find, Replace: tt.replace}
			if err := r.Validate([]string{"name"}); err == nil {
				t.Errorf("Validate accepted %q -> %q", tt.find, tt.replace)
			}
		})
	}
}

func TestCustomColumnRewrite_ReplaceCollapsesLongRuns(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		find, replace string
		want          string
	}{
		{"shrinking run", strings.Repeat("a", 1000), "aa", "a", "a"},
		{"delete separators", strings.Repeat("--", 300) + "x", "--", "", "x"},
		{"non overlapping expansion", "a&b&c", "&", "and", "aandbandc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CustomColumnRewrite{Column: "v", Action: ActionReplace, Find: tt.find, Replace: tt.replace}
			if err := r.Validate([]string{"v"}); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			ds := dataset.MustNew([]string{"v"}, []dataset.Row{{s(tt.input)}})

			out, first := r.Apply(ds)
			if got := out.At(0, 0).String(); got != tt.want {
				t.Errorf("cell = %q, want %q", got, tt.want)
			}
			if first.Affected != 1 {
				t.Errorf("first Affected = %d, want 1", first.Affected)
			}

			again, second := r.Apply(out)
			if second.Affected != 0 || !again.Equal(out) {
				t.Errorf("second apply changed %d value(s), want 0", second.Affected)
			}
		})
	}
}

func TestDropDuplicateRows_KeepsRowsWithSeparatorText(t *testing.T) {
	ds := dataset.MustNew([]string{"a", "b"}, []dataset.Row{
		{s("x\x1f1y"), s("z")},
		{s("x"), s("y\x1f1z")},
		{s("x"), s("y\x1f1z")},
	})

	out, o := DropDuplicateRows{}.Apply(ds)
	if out.Len() != 2 || o.Affected != 1 {
		t.Errorf("Len = %d, Affected = %d, want 2 and 1", out.Len(), o.Affected)
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("%s.Valid() = false", k)
		}
	}
	if Kind("exec_shell").Valid() {
		t.Error("unknown kind reported valid")
	}
	if got := StandardizeEmail("e").Kind(); got != KindStandardizeEmail {
		t.Errorf("StandardizeEmail kind = %s, want %s", got, KindStandardizeEmail)
	}
}
