// Package stdio serves the governance API as newline-delimited
// JSON-RPC 2.0 over a reader/writer pair, typically stdin/stdout.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/proofgate/proofgate/internal/domain/audit"
	"github.com/proofgate/proofgate/internal/domain/auth"
	"github.com/proofgate/proofgate/internal/domain/evidence"
	"github.com/proofgate/proofgate/internal/domain/tool"
	"github.com/proofgate/proofgate/internal/registry"
	"github.com/proofgate/proofgate/internal/sandbox"
	"github.com/proofgate/proofgate/internal/service"
	"github.com/proofgate/proofgate/pkg/rpccode"
)

// Exposed methods.
const (
	MethodRunExecute = "run.execute"
	MethodAuditQuery = "audit.query"
)

// Messages are newline-delimited; a single request line is capped at 1MB.
const (
	initialScanBuffer = 256 * 1024
	maxScanBuffer     = 1024 * 1024
)

// runExecutor is the slice of the run pipeline the server needs.
type runExecutor interface {
	Execute(ctx context.Context, req service.RunRequest) (service.RunResult, error)
}

// Server dispatches JSON-RPC calls to the run pipeline and audit store.
type Server struct {
	runner      runExecutor
	store       audit.Store
	keyring     *auth.Keyring
	logger      *slog.Logger
	requireAuth bool
}

// Option configures the server.
type Option func(*Server)

// WithAuthRequired rejects calls that present no API key instead of
// attributing them to the system actor.
func WithAuthRequired() Option {
	return func(s *Server) { s.requireAuth = true }
}

// NewServer creates a server over the given pipeline and audit store.
// keyring may be empty; calls then run as the system actor.
func NewServer(runner runExecutor, store audit.Store, keyring *auth.Keyring, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		store:   store,
		keyring: keyring,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type executeParams struct {
	APIKey         string             `json:"apiKey,omitempty"`
	Intent         string             `json:"intent,omitempty"`
	ToolName       string             `json:"toolName,omitempty"`
	Args           map[string]any     `json:"args,omitempty"`
	Tenant         string             `json:"tenant,omitempty"`
	TimeoutSeconds int                `json:"timeoutSeconds,omitempty"`
	Review         *evidence.AIReview `json:"review,omitempty"`
}

type queryParams struct {
	APIKey string `json:"apiKey,omitempty"`
	RunID  string `json:"runId"`
	Limit  int    `json:"limit,omitempty"`
}

type queryResult struct {
	RunID  string        `json:"runId"`
	Events []audit.Event `json:"events"`
}

// rpcError carries a JSON-RPC error code through the handler return path.
type rpcError struct {
	code    int
	message string
}

func (e *rpcError) Error() string { return e.message }

func codedError(code int, message string) *rpcError {
	return &rpcError{code: code, message: message}
}

// Serve reads requests from in until EOF or context cancellation.
// Responses are written to out in arrival order; the connection is
// serial by design so audit append order matches request order.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, initialScanBuffer)
	scanner.Buffer(buf, maxScanBuffer)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		msg, err := jsonrpc.DecodeMessage(append([]byte(nil), raw...))
		if err != nil {
			s.logger.Warn("undecodable message", "error", err)
			s.writeError(out, nil, rpccode.InvalidParams, "malformed request")
			continue
		}

		req, ok := msg.(*jsonrpc.Request)
		if !ok {
			s.logger.Warn("ignoring non-request message")
			continue
		}

		result, err := s.dispatch(ctx, req)
		if !req.IsCall() {
			// Notification: never answered, errors are log-only.
			if err != nil {
				s.logger.Warn("notification failed", "method", req.Method, "error", err)
			}
			continue
		}
		if err != nil {
			code, message := mapError(err)
			s.logger.Warn("call failed", "method", req.Method, "code", code, "error", err)
			s.writeError(out, rawID(raw), code, message)
			continue
		}
		if err := s.writeResult(out, req.ID, result); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req *jsonrpc.Request) (any, error) {
	switch req.Method {
	case MethodRunExecute:
		return s.handleExecute(ctx, req.Params)
	case MethodAuditQuery:
		return s.handleQuery(ctx, req.Params)
	default:
		return nil, codedError(rpccode.MethodNotFound, rpccode.Messagef(rpccode.MethodNotFound, "%s", req.Method))
	}
}

func (s *Server) handleExecute(ctx context.Context, raw json.RawMessage) (any, error) {
	var params executeParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}

	actor, err := s.resolveActor(params.APIKey)
	if err != nil {
		return nil, err
	}

	result, err := s.runner.Execute(ctx, service.RunRequest{
		Intent:         params.Intent,
		ToolName:       params.ToolName,
		Args:           params.Args,
		Actor:          actor,
		Tenant:         params.Tenant,
		TimeoutSeconds: params.TimeoutSeconds,
		Review:         params.Review,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) handleQuery(ctx context.Context, raw json.RawMessage) (any, error) {
	var params queryParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	if params.RunID == "" {
		return nil, codedError(rpccode.InvalidParams, rpccode.Messagef(rpccode.InvalidParams, "runId is required"))
	}
	if _, err := s.resolveActor(params.APIKey); err != nil {
		return nil, err
	}

	events, err := s.store.Query(ctx, params.RunID, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	if events == nil {
		events = []audit.Event{}
	}
	return queryResult{RunID: params.RunID, Events: events}, nil
}

func (s *Server) resolveActor(apiKey string) (string, error) {
	if apiKey == "" && s.requireAuth {
		return "", codedError(rpccode.AuthRequired, rpccode.Message(rpccode.AuthRequired))
	}
	actor, err := s.keyring.ResolveActor(apiKey)
	if err != nil {
		return "", err
	}
	return actor, nil
}

func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return codedError(rpccode.InvalidParams, rpccode.Messagef(rpccode.InvalidParams, "%v", err))
	}
	return nil
}

// mapError translates pipeline errors to the code contract.
func mapError(err error) (int, string) {
	var coded *rpcError
	switch {
	case errors.As(err, &coded):
		return coded.code, coded.message
	case errors.Is(err, auth.ErrInvalidKey):
		return rpccode.PermissionDenied, rpccode.Message(rpccode.PermissionDenied)
	case errors.Is(err, tool.ErrNotFound), errors.Is(err, registry.ErrInvalidArgument):
		return rpccode.InvalidParams, rpccode.Messagef(rpccode.InvalidParams, "%v", err)
	case errors.Is(err, sandbox.ErrContainerNotAvailable):
		return rpccode.SandboxViolation, rpccode.Message(rpccode.SandboxViolation)
	default:
		return rpccode.Internal, rpccode.Message(rpccode.Internal)
	}
}

func (s *Server) writeResult(out io.Writer, id jsonrpc.ID, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data, err := jsonrpc.EncodeMessage(&jsonrpc.Response{ID: id, Result: payload})
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// writeError emits a JSON-RPC error envelope. The id is re-attached
// from the raw request bytes: the SDK's ID type does not round-trip
// through interface{}, so the original format is preserved verbatim.
func (s *Server) writeError(out io.Writer, id json.RawMessage, code int, message string) {
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
		"id": id,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("encode error response", "error", err)
		return
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		s.logger.Error("write error response", "error", err)
	}
}

// rawID extracts the id field from raw request bytes, preserving its
// original form (number, string, or null).
func rawID(raw []byte) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields["id"]
}
