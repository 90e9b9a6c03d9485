package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Read Tests
// ----------------------------------------------------------------------------

func TestRead_Basic(t *testing.T) {
	input := "name,age,email\nAlice,30,alice@example.com\nBob,,bob@example.com\n"

	ds, stats, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got := ds.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
	if got := ds.NumColumns(); got != 3 {
		t.Errorf("NumColumns = %d, want 3", got)
	}
	if got := ds.At(0, 1); got.Kind() != KindString || got.Str() != "30" {
		t.Errorf("At(0,1) = %v (%s), want string 30", got, got.Kind())
	}
	if got := ds.At(1, 1); !got.IsNull() {
		t.Errorf("At(1,1) = %v, want null", got)
	}
	if stats.SkippedLines != 0 {
		t.Errorf("SkippedLines = %d, want 0", stats.SkippedLines)
	}
	if len(stats.Issues()) != 0 {
		t.Errorf("Issues = %v, want none", stats.Issues())
	}
}

func TestRead_StripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFname,age\nAlice,30\n"

	ds, _, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if _, ok := ds.ColumnIndex("name"); !ok {
		t.Errorf("columns = %v, want first column %q without BOM", ds.Columns(), "name")
	}
}

func TestRead_SanitizesInvalidUTF8(t *testing.T) {
	input := "name,age\n\xff,30\n"

	ds, _, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got := ds.At(0, 0).Str(); got != "?" {
		t.Errorf("At(0,0) = %q, want %q", got, "?")
	}
}

func TestRead_SkipsRaggedLines(t *testing.T) {
	input := "a,b\n1,2\n3\n4,5\n6,7,8\n"

	ds, stats, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got := ds.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
	if stats.SkippedLines != 2 {
		t.Errorf("SkippedLines = %d, want 2", stats.SkippedLines)
	}

	issues := stats.Issues()
	if len(issues) != 1 || !strings.Contains(issues[0], "2 malformed line(s)") {
		t.Errorf("Issues = %v, want one skipped-lines issue", issues)
	}
}

func TestRead_NormalizesHeader(t *testing.T) {
	input := "email,email,\nx,y,z\n"

	ds, stats, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{"email", "email_2", "column_3"}
	got := ds.Columns()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(stats.RenamedColumns) != 2 {
		t.Errorf("RenamedColumns = %v, want 2 entries", stats.RenamedColumns)
	}
}

func TestRead_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty file", input: ""},
		{name: "header only", input: "a,b\n"},
		{name: "every row ragged", input: "a,b\n1\n2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("Read(%q) error = %v, want ErrMalformedInput", tt.input, err)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Write Tests
// ----------------------------------------------------------------------------

func TestWrite_RendersTypedValues(t *testing.T) {
	ds := MustNew([]string{"name", "age", "active", "joined", "note"}, []Row{
		{String("Alice"), Number(30), Bool(true), Date(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), Null()},
		{String("Bob, Jr."), Number(12.5), Bool(false), Null(), String("x")},
	})

	var buf bytes.Buffer
	if err := Write(&buf, ds); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "name,age,active,joined,note\n" +
		"Alice,30,true,2024-01-15,\n" +
		"\"Bob, Jr.\",12.5,false,,x\n"
	if got := buf.String(); got != want {
		t.Errorf("Write output =\n%s\nwant\n%s", got, want)
	}
}

func TestWrite_ReadBack(t *testing.T) {
	input := "name,city\nAlice,\"New York, NY\"\nBob,\n"

	ds, _, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, ds); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	again, _, err := Read(&buf)
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if !ds.Equal(again) {
		t.Errorf("dataset changed after write and read back")
	}
}
