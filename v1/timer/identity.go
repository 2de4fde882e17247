package timer

import "github.com/google/uuid"

// NewIdentity returns a random instance token. It is generated once per
// process and only ever persisted as the active instance id.
func NewIdentity() string {
	return uuid.NewString()
}
