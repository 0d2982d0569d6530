package ledger

import "time"

// Values holds the normalized tracked fields of one record. A key is
// always present for every schema field; a nil value is an explicit
// null. Value types after normalization: float64 (money), int64
// (counts), string (text and dates).
type Values map[string]any

// Record is the single latest row of one entity for one owner.
type Record struct {
	Owner     string
	Values    Values
	UpdatedAt time.Time
}

// Clone returns a deep copy of the values map.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
