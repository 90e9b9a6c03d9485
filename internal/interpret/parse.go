package interpret

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/profile"
	"github.com/JonMunkholm/csvclean/internal/transform"
)

var errUnsupportedKind = errors.New("unsupported operation")

// operationRequest is one operation as the model wrote it. Fields a kind
// does not use are ignored.
type operationRequest struct {
	Kind        string     `json:"kind"`
	Column      string     `json:"column"`
	Operator    string     `json:"operator"`
	Value       flexString `json:"value"`
	Mode        string     `json:"mode"`
	Action      string     `json:"action"`
	Find        flexString `json:"find"`
	Replace     flexString `json:"replace"`
	Description string     `json:"description"`
}

type operationList struct {
	Operations []operationRequest `json:"operations"`
}

// flexString accepts a JSON string, number, or boolean. Models routinely
// write {"value": 40} for a numeric comparison.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("expected string, number, or boolean, got %s", data)
}

// parseResponse extracts the operation list from the model's answer,
// tolerating markdown code fences and text around the JSON object.
func parseResponse(raw string) ([]operationRequest, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var list operationList
	if err := json.Unmarshal([]byte(body[start:end+1]), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return list.Operations, nil
}

// validate turns requests into operations, dropping every request with an
// unknown kind, an unknown column, or invalid parameters.
func validate(requests []operationRequest, snap profile.Snapshot, limit int) Result {
	columns := make([]string, len(snap.Columns))
	for i, c := range snap.Columns {
		columns[i] = c.Name
	}

	var res Result
	for i, req := range requests {
		if len(res.Operations) >= limit {
			res.Discarded = append(res.Discarded,
				fmt.Sprintf("Discarded %d instruction(s) beyond the limit of %d operations", len(requests)-i, limit))
			break
		}

		op, err := build(req, columns)
		if err != nil {
			res.Discarded = append(res.Discarded, discardIssue(req, err))
			continue
		}
		res.Operations = append(res.Operations, op)
	}
	return res
}

func build(req operationRequest, columns []string) (transform.Operation, error) {
	kind := transform.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !kind.Valid() {
		return nil, errUnsupportedKind
	}

	switch kind {
	case transform.KindDropDuplicateRows:
		return transform.DropDuplicateRows{}, nil
	case transform.KindDropEmptyRows:
		return transform.DropEmptyRows{}, nil
	case transform.KindCoerceColumnTypes:
		return transform.CoerceColumnTypes{}, nil

	case transform.KindStandardizeEmail, transform.KindStandardizePhone,
		transform.KindStandardizeDate, transform.KindStandardizeCurrency:
		if !contains(columns, req.Column) {
			return nil, fmt.Errorf("unknown column %q", req.Column)
		}
		sem := dataset.Semantic(strings.TrimPrefix(string(kind), "standardize_"))
		op, _ := transform.StandardizeFor(sem, req.Column)
		return op, nil

	case transform.KindCustomFilter:
		mode := transform.FilterMode(strings.ToLower(req.Mode))
		if mode == "" {
			mode = transform.ModeDrop
		}
		f := transform.CustomFilter{
			Column:      req.Column,
			Operator:    transform.FilterOperator(strings.ToLower(req.Operator)),
			Value:       string(req.Value),
			Mode:        mode,
			Description: strings.TrimSpace(req.Description),
		}
		if err := f.Validate(columns); err != nil {
			return nil, err
		}
		return f, nil

	case transform.KindCustomColumnRewrite:
		r := transform.CustomColumnRewrite{
			Column:      req.Column,
			Action:      transform.RewriteAction(strings.ToLower(req.Action)),
			Find:        string(req.Find),
			Replace:     string(req.Replace),
			Value:       string(req.Value),
			Description: strings.TrimSpace(req.Description),
		}
		if err := r.Validate(columns); err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, errUnsupportedKind
}

func discardIssue(req operationRequest, err error) string {
	kind := req.Kind
	if kind == "" {
		kind = "(missing kind)"
	}
	if req.Column != "" {
		return fmt.Sprintf("Discarded instruction: %s on '%s': %v", kind, req.Column, err)
	}
	return fmt.Sprintf("Discarded instruction: %s: %v", kind, err)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
