package engine

import (
	"fmt"

	"github.com/mholland/senville-sync/internal/model"
)

// CommandError means a command for a field could not be delivered or was
// rejected. The display keeps showing the operator's intended value until the
// next successful poll replaces it with the device's confirmed state.
type CommandError struct {
	Field model.Field
	Err   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command for %s failed: %v", e.Field, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
