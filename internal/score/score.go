package score

import (
	"errors"
	"fmt"
	"strings"
)

// APIPath is appended to the operator-supplied base URL. The server runs
// under the /fullstack context path.
const APIPath = "/fullstack/api/tech_plan/score/submit"

// Data is a flat submission record keyed by canonical field name.
type Data map[string]any

// Kind is the value type a field carries on the command line.
type Kind int

const (
	KindString Kind = iota
	KindFloat
)

// Field describes one submission field: its JSON key and the flag that sets it.
type Field struct {
	Key   string
	Flag  string
	Kind  Kind
	Usage string
}

// Fields lists every required field in reporting order.
var Fields = []Field{
	{Key: "techDocName", Flag: "tech-doc-name", Kind: KindString, Usage: "Technical design document name"},
	{Key: "techDocLink", Flag: "tech-doc-link", Kind: KindString, Usage: "Technical design document URL"},
	{Key: "submitter", Flag: "submitter", Kind: KindString, Usage: "Name of the person submitting"},
	{Key: "businessLine", Flag: "business-line", Kind: KindString, Usage: "Business line"},
	{Key: "productScore", Flag: "product-score", Kind: KindFloat, Usage: "Score from the product perspective"},
	{Key: "backendScore", Flag: "backend-score", Kind: KindFloat, Usage: "Score from the backend perspective"},
	{Key: "frontendScore", Flag: "frontend-score", Kind: KindFloat, Usage: "Score from the frontend perspective"},
	{Key: "testScore", Flag: "test-score", Kind: KindFloat, Usage: "Score from the test perspective"},
	{Key: "globalScore", Flag: "global-score", Kind: KindFloat, Usage: "Overall score"},
	{Key: "globalLevel", Flag: "global-level", Kind: KindString, Usage: "Overall level (excellent/good/fair/risk)"},
}

// RequiredKeys returns the canonical keys of all required fields.
func RequiredKeys() []string {
	keys := make([]string, len(Fields))
	for i, f := range Fields {
		keys[i] = f.Key
	}
	return keys
}

// Values holds flag values the operator actually supplied, keyed by flag name.
type Values struct {
	Strings map[string]string
	Floats  map[string]float64
}

// NewValues returns an empty Values ready for use.
func NewValues() *Values {
	return &Values{
		Strings: make(map[string]string),
		Floats:  make(map[string]float64),
	}
}

// Build maps supplied flag values onto canonical keys. Fields that were not
// supplied are left out entirely; empty strings count as not supplied.
func Build(v *Values) Data {
	data := Data{}
	if v == nil {
		return data
	}
	for _, f := range Fields {
		switch f.Kind {
		case KindString:
			if s, ok := v.Strings[f.Flag]; ok && s != "" {
				data[f.Key] = s
			}
		case KindFloat:
			if n, ok := v.Floats[f.Flag]; ok {
				data[f.Key] = n
			}
		}
	}
	return data
}

// MissingFieldsError reports every required key absent from a submission.
type MissingFieldsError struct {
	Missing []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// ErrMissingFields matches any *MissingFieldsError with errors.Is.
var ErrMissingFields = errors.New("missing required fields")

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

// Validate returns the required keys missing from data, in field order.
// Only presence is checked; values are not type- or range-checked.
func Validate(data Data) []string {
	var missing []string
	for _, f := range Fields {
		if _, ok := data[f.Key]; !ok {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// Check is Validate as an error: nil when complete, *MissingFieldsError otherwise.
func Check(data Data) error {
	if missing := Validate(data); len(missing) > 0 {
		return &MissingFieldsError{Missing: missing}
	}
	return nil
}

// Endpoint builds the submit URL from a base URL, trimming trailing slashes.
func Endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + APIPath
}
