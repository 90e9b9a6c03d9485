package interpret

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/profile"
)

const systemPrompt = `You translate data cleaning instructions for a CSV file into a JSON list of operations.

Respond with a single JSON object and nothing else:
{"operations": [ ... ]}

Each operation is an object with a "kind" and the fields that kind needs.
Allowed kinds:
- "drop_duplicate_rows"
- "drop_empty_rows"
- "coerce_column_types"
- "standardize_email"     {"column"}
- "standardize_phone"     {"column"}
- "standardize_date"      {"column"}
- "standardize_currency"  {"column"}
- "custom_filter"         {"column", "operator", "value", "mode", "description"}
    operator: eq, neq, contains, starts, ends, gt, gte, lt, lte, in (comma-separated value), empty
    mode: "drop" removes matching rows, "keep" keeps only matching rows
- "custom_column_rewrite" {"column", "action", "find", "replace", "value", "description"}
    action: lowercase, uppercase, titlecase, trim, strip_non_digits, replace (find/replace), fill_empty (value)

Rules:
- Use only the column names listed in the profile, spelled exactly.
- List operations in the order they should be applied.
- If the instruction asks for something outside this list, leave it out.
- If nothing applies, return {"operations": []}.`

// userPrompt combines the instruction with a compact column summary.
func userPrompt(instruction string, snap profile.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset profile (%d rows):\n", snap.Rows)
	for _, c := range snap.Columns {
		fmt.Fprintf(&b, "- %q: type=%s", c.Name, c.Type)
		if c.Confident() {
			fmt.Fprintf(&b, ", kind=%s", c.Semantic)
		}
		fmt.Fprintf(&b, ", missing=%.0f%%, distinct=%.0f%%\n", c.NullRatio*100, c.DistinctRatio*100)
	}
	b.WriteString("\nInstruction:\n")
	b.WriteString(instruction)
	return b.String()
}
