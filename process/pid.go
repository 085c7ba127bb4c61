package process

import "github.com/google/uuid"

// PID is an opaque, process-unique identifier assigned at creation. It is
// the routing key on the control plane and the primary key for
// persistence. A PID is never reused, and a persisted bundle's PID
// survives reconstruction across save/load.
type PID struct {
	id uuid.UUID
}

// NewPID generates a fresh, globally-unique PID.
func NewPID() PID {
	return PID{id: uuid.New()}
}

// ParsePID parses a PID from its canonical string form, as produced by
// String() and typically round-tripped through a bundle or task message.
func ParsePID(s string) (PID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PID{}, err
	}
	return PID{id: id}, nil
}

// String renders the PID in its canonical textual form.
func (p PID) String() string {
	return p.id.String()
}

// IsZero reports whether p is the zero-value PID (never assigned by
// NewPID or ParsePID).
func (p PID) IsZero() bool {
	return p.id == uuid.Nil
}
