// Package rpccode defines the JSON-RPC error codes the governance
// boundary returns. Codes are fixed contract values: clients match on
// them, so they never change meaning between releases.
package rpccode

import "fmt"

// Governance error codes, in the JSON-RPC implementation-defined range.
const (
	// AuthRequired: the call needs an API key and none was presented.
	AuthRequired = -32001
	// PermissionDenied: the presented key is not valid for this call.
	PermissionDenied = -32002
	// PolicyBlocked: the active policy denied the tool call.
	PolicyBlocked = -32003
	// BudgetExceeded: the run exhausted its cost budget.
	BudgetExceeded = -32004
	// SandboxViolation: the sandbox rejected or could not host the call.
	SandboxViolation = -32005
	// Timeout: execution exceeded the configured wall-clock limit.
	Timeout = -32006
	// RateLimited: the caller is sending blocked calls too fast.
	// Reserved: no limiter is enforced yet.
	RateLimited = -32007
	// QuotaExceeded: the tenant exhausted its run quota.
	// Reserved: no quota accounting is enforced yet.
	QuotaExceeded = -32008
)

// Standard JSON-RPC codes the boundary also returns.
const (
	// InvalidParams: request parameters failed validation.
	InvalidParams = -32602
	// MethodNotFound: the method name is not exposed.
	MethodNotFound = -32601
	// Internal: an unexpected server-side fault.
	Internal = -32603
)

// messages are the default human-readable templates per code.
var messages = map[int]string{
	AuthRequired:     "authentication required",
	PermissionDenied: "permission denied",
	PolicyBlocked:    "blocked by policy",
	BudgetExceeded:   "cost budget exceeded",
	SandboxViolation: "sandbox violation",
	Timeout:          "execution timed out",
	RateLimited:      "rate limit exceeded",
	QuotaExceeded:    "quota exceeded",
	InvalidParams:    "invalid params",
	MethodNotFound:   "method not found",
	Internal:         "internal error",
}

// Message returns the default message for code, or a generic fallback
// for unknown codes.
func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return fmt.Sprintf("error %d", code)
}

// Messagef returns the default message for code with a detail suffix.
func Messagef(code int, format string, args ...any) string {
	return Message(code) + ": " + fmt.Sprintf(format, args...)
}
