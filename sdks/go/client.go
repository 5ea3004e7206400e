package proofgate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Methods exposed by the proofgate server.
const (
	methodRunExecute = "run.execute"
	methodAuditQuery = "audit.query"
)

// A single response line is capped at 1MB, matching the server's limit.
const maxLineSize = 1024 * 1024

// Client talks to a proofgate server over newline-delimited JSON-RPC.
// Calls are serialized: the server processes one request at a time and
// the SDK matches that, so a Client is safe for concurrent use.
type Client struct {
	apiKey  string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	w       io.Writer
	scanner *bufio.Scanner
	closer  io.Closer
	nextID  int64

	proc *exec.Cmd
}

// NewClient creates a client over an existing connection, typically
// the stdio pipes of a running proofgate server. If rw also implements
// io.Closer, Close closes it.
func NewClient(rw io.ReadWriter, opts ...Option) *Client {
	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	c := &Client{
		timeout: 5 * time.Minute,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		w:       rw,
		scanner: scanner,
	}
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Spawn starts a proofgate server as a subprocess and connects to its
// stdio. The subprocess inherits stderr so server logs stay visible.
func Spawn(ctx context.Context, name string, args []string, opts ...Option) (*Client, error) {
	proc := exec.CommandContext(ctx, name, args...)
	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	proc.Stderr = os.Stderr

	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	c := NewClient(struct {
		io.Reader
		io.Writer
	}{stdout, stdin}, opts...)
	c.closer = stdin
	c.proc = proc
	return c, nil
}

// Close closes the connection. For spawned servers this signals EOF on
// the server's stdin, which shuts it down; the subprocess is then
// waited on.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.closer != nil {
		err = c.closer.Close()
		c.closer = nil
	}
	if c.proc != nil {
		if waitErr := c.proc.Wait(); err == nil {
			err = waitErr
		}
		c.proc = nil
	}
	return err
}

// Execute runs one governed request and returns the decision.
// Governance outcomes (blocked, failed, timed out tools) arrive inside
// the RunResult; an error means the call itself was rejected.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*RunResult, error) {
	params := struct {
		ExecuteRequest
		APIKey string `json:"apiKey,omitempty"`
	}{ExecuteRequest: req, APIKey: c.apiKey}

	var result RunResult
	if err := c.call(ctx, methodRunExecute, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueryAudit returns the audit events for a run, oldest first.
// limit <= 0 applies the server default.
func (c *Client) QueryAudit(ctx context.Context, runID string, limit int) ([]AuditEvent, error) {
	params := struct {
		APIKey string `json:"apiKey,omitempty"`
		RunID  string `json:"runId"`
		Limit  int    `json:"limit,omitempty"`
	}{APIKey: c.apiKey, RunID: runID, Limit: limit}

	var result struct {
		RunID  string       `json:"runId"`
		Events []AuditEvent `json:"events"`
	}
	if err := c.call(ctx, methodAuditQuery, params, &result); err != nil {
		return nil, err
	}
	return result.Events, nil
}

// rpcResponse is the wire shape of a server reply.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// call performs one JSON-RPC round trip.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	resp, err := c.readResponse(ctx, id)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// readResponse reads lines until the reply with the given id arrives.
// The blocking read runs in a goroutine so the caller's context is
// honored; after a context failure the connection is no longer usable
// for further calls.
func (c *Client) readResponse(ctx context.Context, id int64) (*rpcResponse, error) {
	type outcome struct {
		resp *rpcResponse
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		for c.scanner.Scan() {
			line := c.scanner.Bytes()
			var resp rpcResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				c.logger.Warn("undecodable response line", "error", err)
				continue
			}
			var respID int64
			if err := json.Unmarshal(resp.ID, &respID); err != nil || respID != id {
				c.logger.Warn("response for unknown id", "id", string(resp.ID))
				continue
			}
			ch <- outcome{resp: &resp}
			return
		}
		if err := c.scanner.Err(); err != nil {
			ch <- outcome{err: fmt.Errorf("read response: %w", err)}
			return
		}
		ch <- outcome{err: ErrConnectionClosed}
	}()

	select {
	case out := <-ch:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
