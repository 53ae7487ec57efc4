package core

import "time"

// Timestamp is a wall-clock instant rendered as RFC3339 text.
type Timestamp time.Time

func Now() Timestamp { return Timestamp(time.Now().UTC()) }

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) IsZero() bool { return t.Time().IsZero() }

func (t Timestamp) String() string { return t.Time().Format(time.RFC3339Nano) }

func (t Timestamp) MarshalJSON() ([]byte, error) { return t.Time().MarshalJSON() }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(b); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}
