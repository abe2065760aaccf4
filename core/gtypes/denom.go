package gtypes

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxDenomLength bounds a Denom's encoded length (§3), grounded on
// original_source crates/types/src/denom.rs.
const MaxDenomLength = 128

// Denom is a slash-delimited string of ASCII-alphanumeric parts, length 1-128
// (§3).
type Denom string

// NewDenom validates s and returns it as a Denom.
func NewDenom(s string) (Denom, error) {
	if len(s) < 1 || len(s) > MaxDenomLength {
		return "", fmt.Errorf("%w: denom %q: too short or too long", ErrInvalidDenom, s)
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" {
			return "", fmt.Errorf("%w: denom %q: empty subdenom", ErrInvalidDenom, s)
		}
		for _, r := range part {
			if !isAlphanumeric(r) {
				return "", fmt.Errorf("%w: denom %q: non-alphanumeric character", ErrInvalidDenom, s)
			}
		}
	}
	return Denom(s), nil
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func (d Denom) String() string { return string(d) }

func (d Denom) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}

func (d *Denom) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewDenom(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
