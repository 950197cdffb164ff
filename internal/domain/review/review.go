// internal/domain/review/review.go
package review

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the outcome of one long-polling request.
type Status string

const (
	StatusFound   Status = "found"   // new checked attempts are available
	StatusTimeout Status = "timeout" // server-side wait elapsed with nothing new
)

// Cursor is the opaque resume point handed back by the API.
// The API sends it either as a JSON string or as a JSON number; the literal text is kept.
type Cursor string

// UnmarshalJSON accepts both `"1555493856.19"` and `1555493856.19`.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cursor(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("cursor must be a string or a number, got %s", data)
	}
	*c = Cursor(n.String())
	return nil
}

// Attempt is one reviewed lesson submission.
// Fields are pointers so a missing key can be told apart from a zero value.
type Attempt struct {
	LessonTitle *string `json:"lesson_title"`
	LessonURL   *string `json:"lesson_url"`
	IsNegative  *bool   `json:"is_negative"`
}

// Payload is the decoded body of one long-polling response.
type Payload struct {
	Status               Status    `json:"status"`
	NewAttempts          []Attempt `json:"new_attempts,omitempty"`
	LastAttemptTimestamp *Cursor   `json:"last_attempt_timestamp,omitempty"`
	TimestampToRequest   *Cursor   `json:"timestamp_to_request,omitempty"`
}

// NextCursor returns the cursor for the next request.
// ok is false when the payload carries no cursor; the caller then keeps its current one.
func NextCursor(p Payload) (cursor Cursor, ok bool, err error) {
	var field *Cursor
	switch p.Status {
	case StatusFound:
		field = p.LastAttemptTimestamp
	case StatusTimeout:
		field = p.TimestampToRequest
	default:
		return "", false, UnknownStatusError(p.Status)
	}
	if field == nil {
		return "", false, nil
	}
	return *field, true, nil
}
