package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

// Filter operators.
const (
	OpEq  = "eq"
	OpNeq = "neq"
)

// Filter is a single row filter in column=op.value form, e.g. "stream_id=eq.42".
// The zero Filter matches every row.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Eq returns the filter column=eq.value.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// ParseFilter parses the column=op.value form. An empty string is the zero Filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}

	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: missing '='", s)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q: missing operator", s)
	}
	switch op {
	case OpEq, OpNeq:
	default:
		return Filter{}, fmt.Errorf("invalid filter %q: unsupported operator %q", s, op)
	}

	return Filter{Column: column, Op: op, Value: value}, nil
}

// IsZero reports whether f matches every row.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

// String renders f in column=op.value form.
func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=" + f.Op + "." + f.Value
}

// Match reports whether the change's record satisfies f.
func (f Filter) Match(change *domain.Change) bool {
	if f.IsZero() {
		return true
	}

	fields, err := change.Fields()
	if err != nil {
		return false
	}

	v, ok := fields[f.Column]
	equal := ok && formatValue(v) == f.Value
	if f.Op == OpNeq {
		return !equal
	}
	return equal
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
