package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Keys of the work data exchanged with the host.
const (
	KeyImageURI  = "KEY_IMAGE_URI"
	KeyBlurLevel = "KEY_BLUR_LEVEL"
)

// Data is the key/value payload of a work request or a work result.
type Data map[string]any

// String returns the string stored under key, or an empty string if the key
// is missing or holds another type.
func (d Data) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Int returns the integer stored under key, or def if the key is missing or
// does not hold an integral number.
func (d Data) Int(key string, def int) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		// JSON numbers decode as float64.
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	default:
		return def
	}
}

// Status is the terminal state of a work request.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is the outcome of a single work request: either a success carrying
// output data or a failure without payload.
type Result struct {
	Status Status `json:"status"`
	Output Data   `json:"output,omitempty"`
}

// Success returns a successful result carrying output.
func Success(output Data) Result {
	return Result{Status: StatusSucceeded, Output: output}
}

// Failure returns a failed result. Failures never carry output.
func Failure() Result {
	return Result{Status: StatusFailed}
}

// Succeeded reports whether the result is a success.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// WorkMessage is a work request as it travels through the requests topic.
type WorkMessage struct {
	ID   uuid.UUID `json:"id"`
	Data Data      `json:"data"`
}

// ResultMessage is a work result as it travels through the results topic.
type ResultMessage struct {
	ID     uuid.UUID `json:"id"`
	Status Status    `json:"status"`
	Data   Data      `json:"data,omitempty"`
}

// StatusMessage is a status notification published while a request is being processed.
type StatusMessage struct {
	WorkID  uuid.UUID `json:"work_id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
