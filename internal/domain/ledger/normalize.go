package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayout is the day-precision form due dates are stored in.
const dateLayout = "2006-01-02"

// Normalize converts raw draft input into the full tracked field set of
// the schema. Every schema field is present in the result; an empty
// input becomes an explicit null, never an empty string or NaN. Counts
// parse as integers, monetary amounts as reals, dates are truncated to
// day precision. Normalizing an already-normalized value set yields the
// same value set.
func (s Schema) Normalize(draft map[string]string) (Values, error) {
	values := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		raw := strings.TrimSpace(draft[f.Name])
		if raw == "" {
			values[f.Name] = nil
			continue
		}
		switch f.Kind {
		case KindMoney:
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: invalid amount %q", f.Name, raw)
			}
			values[f.Name] = n
		case KindCount:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: invalid count %q", f.Name, raw)
			}
			values[f.Name] = n
		case KindText:
			values[f.Name] = raw
		case KindDate:
			day, err := normalizeDate(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			values[f.Name] = day
		}
	}
	return values, nil
}

// normalizeDate truncates a date-like string to its day-precision form.
// Timestamps such as "2025-03-01T10:00:00Z" keep only the date part.
func normalizeDate(raw string) (string, error) {
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	if _, err := time.Parse(dateLayout, raw); err != nil {
		return "", fmt.Errorf("invalid date %q", raw)
	}
	return raw, nil
}

// Draft renders a record into per-field raw input strings. A nil record
// (no row for the owner) and a record with all-null fields render the
// same way: every field empty.
func (s Schema) Draft(rec *Record) map[string]string {
	draft := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		if rec == nil {
			draft[f.Name] = ""
			continue
		}
		draft[f.Name] = formatValue(f, rec.Values[f.Name])
	}
	return draft
}

// formatValue renders one normalized (or wire-decoded) value as draft
// input. JSON decoding hands numbers over as float64, so counts accept
// both int64 and float64.
func formatValue(f Field, v any) string {
	if v == nil {
		return ""
	}
	switch f.Kind {
	case KindMoney:
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(n, 10)
		}
	case KindCount:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10)
		case float64:
			return strconv.FormatInt(int64(n), 10)
		}
	case KindText:
		if s, ok := v.(string); ok {
			return s
		}
	case KindDate:
		if s, ok := v.(string); ok {
			if day, err := normalizeDate(s); err == nil {
				return day
			}
			return s
		}
	}
	return fmt.Sprint(v)
}

// Coerce brings wire-decoded values to their normalized Go types, so
// that records arriving over JSON compare equal to locally normalized
// ones. Unknown keys are dropped, missing keys become nulls.
func (s Schema) Coerce(in Values) Values {
	out := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := in[f.Name]
		if !ok || v == nil {
			out[f.Name] = nil
			continue
		}
		switch f.Kind {
		case KindMoney:
			// Postgres drivers hand integer columns over as int32/int64.
			switch n := v.(type) {
			case float64:
				out[f.Name] = n
			case float32:
				out[f.Name] = float64(n)
			case int64:
				out[f.Name] = float64(n)
			case int32:
				out[f.Name] = float64(n)
			case int:
				out[f.Name] = float64(n)
			default:
				out[f.Name] = nil
			}
		case KindCount:
			switch n := v.(type) {
			case int64:
				out[f.Name] = n
			case int32:
				out[f.Name] = int64(n)
			case int:
				out[f.Name] = int64(n)
			case float64:
				out[f.Name] = int64(n)
			default:
				out[f.Name] = nil
			}
		case KindText, KindDate:
			switch str := v.(type) {
			case string:
				if f.Kind == KindDate {
					if day, err := normalizeDate(str); err == nil {
						out[f.Name] = day
						continue
					}
				}
				out[f.Name] = str
			case time.Time:
				// date columns scan as time.Time.
				if f.Kind == KindDate {
					out[f.Name] = str.Format(dateLayout)
				} else {
					out[f.Name] = nil
				}
			default:
				out[f.Name] = nil
			}
		}
	}
	return out
}
