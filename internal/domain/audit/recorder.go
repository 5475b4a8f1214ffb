// Package audit defines the audit trail contract. Workflow services record
// who did what to which entity; the storage implementation lives in
// infrastructure.
package audit

import (
	"context"
)

// Common actions recorded by the services.
const (
	ActionCreate  = "CREATE"
	ActionPost    = "POST"
	ActionCancel  = "CANCEL"
	ActionRestore = "RESTORE"
	ActionDelete  = "DELETE"
	ActionApply   = "APPLY"
)

// Entry is one audit record. OldData and NewData are JSON-encoded by the
// recorder; pass domain structs or maps.
type Entry struct {
	Action   string
	Entity   string
	EntityID string
	OldData  any
	NewData  any
	ActorID  string
}

// Recorder persists audit entries. Implementations must honor the ambient
// transaction so the entry commits or rolls back with the operation it
// describes.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop is a Recorder that discards entries. Used in tests.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

var _ Recorder = Nop{}
