package dataset

// Semantic is a column's inferred real-world meaning, as opposed to its
// storage kind.
type Semantic string

const (
	SemanticGeneric  Semantic = "generic"
	SemanticEmail    Semantic = "email"
	SemanticPhone    Semantic = "phone"
	SemanticDate     Semantic = "date"
	SemanticCurrency Semantic = "currency"
)

// Semantics lists the standardizable kinds in detection priority order.
// When two kinds match a column equally well, the earlier one wins
// (an ISO date such as 2024-01-15 is also a plausible 8-digit phone number).
var Semantics = []Semantic{SemanticEmail, SemanticDate, SemanticCurrency, SemanticPhone}

// Matches reports whether a single non-null value is a well-formed
// instance of the semantic kind.
func (s Semantic) Matches(v Value) bool {
	switch s {
	case SemanticEmail:
		if v.Kind() != KindString {
			return false
		}
		_, ok := ParseEmail(v.Str())
		return ok
	case SemanticPhone:
		if v.Kind() != KindString {
			return false
		}
		_, ok := ParsePhone(v.Str())
		return ok
	case SemanticDate:
		if v.Kind() == KindDate {
			return true
		}
		if v.Kind() != KindString {
			return false
		}
		_, ok := ParseDate(v.Str())
		return ok
	case SemanticCurrency:
		return v.Kind() == KindString && LooksLikeCurrency(v.Str())
	default:
		return false
	}
}

// Valid reports whether a value belongs in a column already classified as
// this kind. It is looser than Matches: standardized output (numbers in a
// currency column, parsed dates) is valid even though it no longer carries
// the surface markers detection relies on.
func (s Semantic) Valid(v Value) bool {
	if v.IsNull() {
		return true
	}
	switch s {
	case SemanticCurrency:
		if v.Kind() == KindNumber {
			return true
		}
		if v.Kind() != KindString {
			return false
		}
		_, ok := ParseCurrency(v.Str())
		return ok
	case SemanticGeneric:
		return true
	default:
		return s.Matches(v)
	}
}
