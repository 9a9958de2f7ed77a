package config

import (
	"os"
	"sync"
)

// RuntimeConfig stores configuration set at runtime via CLI flags.
// These values are not persisted to config files.
type RuntimeConfig struct {
	mu       sync.RWMutex
	operator string
	readOnly bool
}

var globalRuntime = &RuntimeConfig{}

// SetReadOnly puts the editor in read-only mode: the page is served and
// the preview works, but every mutating API call is rejected.
func SetReadOnly(readOnly bool) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()
	globalRuntime.readOnly = readOnly
}

// IsReadOnly returns whether the editor is in read-only mode.
func IsReadOnly() bool {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.readOnly
}

// SetOperator sets the operator identity for this session, used in audit
// logs of destructive operations.
// If empty, defaults to the current user from $USER environment variable.
func SetOperator(op string) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()

	if op == "" {
		op = os.Getenv("USER")
	}
	globalRuntime.operator = op
}

// GetOperator returns the current operator identity.
// Returns empty string if not set and $USER is not available.
func GetOperator() string {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.operator
}
