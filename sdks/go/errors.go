package proofgate

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrAuthRequired is returned when the server requires an API key
	// and none was presented.
	ErrAuthRequired = errors.New("authentication required")

	// ErrPermissionDenied is returned when the presented API key is not
	// valid.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPolicyBlocked is returned when the active policy denied the
	// call at the RPC boundary.
	ErrPolicyBlocked = errors.New("blocked by policy")

	// ErrInvalidParams is returned when the request parameters failed
	// validation on the server.
	ErrInvalidParams = errors.New("invalid params")

	// ErrConnectionClosed is returned when the server closed the
	// connection before answering.
	ErrConnectionClosed = errors.New("connection closed")
)

// JSON-RPC error codes the proofgate server returns. Fixed contract
// values, mirrored from the server's code enumeration.
const (
	CodeAuthRequired     = -32001
	CodePermissionDenied = -32002
	CodePolicyBlocked    = -32003
	CodeBudgetExceeded   = -32004
	CodeSandboxViolation = -32005
	CodeTimeout          = -32006
	CodeInvalidParams    = -32602
	CodeMethodNotFound   = -32601
)

// RPCError is a JSON-RPC error returned by the proofgate server.
type RPCError struct {
	// Code is the JSON-RPC error code.
	Code int `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
}

// Error returns a human-readable description of the RPC error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("proofgate [%d]: %s", e.Code, e.Message)
}

// Is maps well-known codes onto the package sentinels, so callers can
// write errors.Is(err, proofgate.ErrPolicyBlocked) without inspecting
// codes themselves.
func (e *RPCError) Is(target error) bool {
	switch target {
	case ErrAuthRequired:
		return e.Code == CodeAuthRequired
	case ErrPermissionDenied:
		return e.Code == CodePermissionDenied
	case ErrPolicyBlocked:
		return e.Code == CodePolicyBlocked
	case ErrInvalidParams:
		return e.Code == CodeInvalidParams
	default:
		return false
	}
}
