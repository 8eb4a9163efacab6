package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// ID identifies a transaction. A provisional ID is minted locally before the
// store has answered; a confirmed ID is whatever the store assigned. Anything
// decoded from a store is confirmed.
type ID struct {
	value       string
	provisional bool
}

func Provisional(local int64) ID {
	return ID{value: strconv.FormatInt(local, 10), provisional: true}
}

func Confirmed(storeID string) ID {
	return ID{value: storeID}
}

func (id ID) String() string      { return id.value }
func (id ID) IsZero() bool        { return id.value == "" }
func (id ID) IsProvisional() bool { return id.provisional }

// Confirm returns the same value marked as store-assigned.
func (id ID) Confirm() ID {
	return ID{value: id.value}
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Confirmed(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = Confirmed(n.String())
	return nil
}

// Clock mints provisional ids from the wall clock in milliseconds. Ids are
// strictly increasing even when two calls land in the same millisecond.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return Provisional(ms)
}
