package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Status represents the scrape state of a coordinate record.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusTodo, StatusProcessing, StatusDone}

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusProcessing, StatusDone:
		return Status(s), nil
	default:
		return "", eris.Errorf("unknown status: %q (valid: TODO, PROCESSING, DONE)", s)
	}
}

// Coordinate is one latitude/longitude input row with its processing status.
type Coordinate struct {
	ID        int64      `json:"id"`
	Lat       float64    `json:"lat" csv:"lat"`
	Lng       float64    `json:"lng" csv:"lng"`
	Status    Status     `json:"status"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}
