package gtypes

import (
	"encoding/json"
	"strconv"
)

// Duration and Timestamp are nanosecond-resolution u64 quantities (§3, §6:
// integers beyond 32 bits are serialized as decimal strings).
type Duration uint64

type Timestamp uint64

const NanosPerSecond = 1_000_000_000

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(d), 10))
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (t Timestamp) Add(d Duration) Timestamp { return t + Timestamp(d) }

func (t Timestamp) After(other Timestamp) bool { return t > other }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(t), 10))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*t = Timestamp(v)
	return nil
}
