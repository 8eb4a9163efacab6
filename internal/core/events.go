package core

import "time"

// ChangeOp names the mutation a ChangeEvent reports.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// ChangeEvent describes one mutation the store accepted. For deletions only
// Transaction.ID is meaningful.
type ChangeEvent struct {
	Op          ChangeOp    `json:"op"`
	Transaction Transaction `json:"transaction"`
	At          time.Time   `json:"at"`
}
