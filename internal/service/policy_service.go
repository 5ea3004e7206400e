// Package service contains application services: the policy snapshot
// holder, the async audit recorder, and the run pipeline.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"

	celeval "github.com/proofgate/proofgate/internal/adapter/outbound/cel"
	"github.com/proofgate/proofgate/internal/domain/policy"
	"github.com/proofgate/proofgate/internal/domain/tool"
	"github.com/proofgate/proofgate/internal/registry"
)

// compiledGuard is a pre-compiled guard condition bound to a tool name
// or glob pattern.
type compiledGuard struct {
	toolMatch string
	condition string
	program   cel.Program
}

// Snapshot is the immutable view of one loaded policy document:
// config, hash, compiled guard programs, and compiled screening
// patterns. Reload builds a fresh Snapshot and swaps it atomically;
// a run holds one Snapshot for its whole lifetime, so a mid-run reload
// never changes its rules.
type Snapshot struct {
	Config *policy.Config
	Hash   string

	guards    []compiledGuard
	keywords  []string // lowercased high-risk keywords
	patterns  []*regexp.Regexp
	evaluator *celeval.Evaluator
}

// Sandbox implements registry.Snapshot.
func (s *Snapshot) Sandbox() policy.SandboxConfig {
	return s.Config.Sandbox
}

// TimeoutSeconds implements registry.Snapshot.
func (s *Snapshot) TimeoutSeconds() int {
	return s.Config.CostGovernance.TimeoutSeconds
}

// Decide gates one tool call: allowlist first, then any guard
// conditions bound to the tool. Guard evaluation errors fail closed.
func (s *Snapshot) Decide(ctx context.Context, rc tool.RunContext, req tool.Request) registry.Decision {
	if !s.Config.Tools.Allows(req.ToolName) {
		return registry.Decision{
			Reason: fmt.Sprintf("tool %q is not in the policy allowlist", req.ToolName),
			Source: tool.SourcePolicyBlock,
		}
	}

	for _, guard := range s.guards {
		if !guardMatches(guard.toolMatch, req.ToolName) {
			continue
		}
		allowed, err := s.evaluator.Evaluate(ctx, guard.program, rc, req)
		if err != nil {
			return registry.Decision{
				Reason: fmt.Sprintf("guard condition for %q failed to evaluate: %v", guard.toolMatch, err),
				Source: tool.SourcePolicyRule,
			}
		}
		if !allowed {
			return registry.Decision{
				Reason: fmt.Sprintf("guard condition for %q denied the call", guard.toolMatch),
				Source: tool.SourcePolicyRule,
			}
		}
	}
	return registry.Decision{Allowed: true}
}

// guardMatches reports whether a rule's tool pattern covers name.
func guardMatches(pattern, name string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == name
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

// ScreenResult is the outcome of high-risk content screening.
type ScreenResult struct {
	Flagged bool
	// Reason names the keyword or pattern that matched.
	Reason string
}

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key    uint64
	result ScreenResult
	prev   *lruEntry
	next   *lruEntry
}

// resultCache provides bounded LRU caching for screening results.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type resultCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

func newResultCache(maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached result, promoting the entry on hit.
func (c *resultCache) Get(key uint64) (ScreenResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.result, true
	}
	return ScreenResult{}, false
}

// Put stores a result, evicting the least recently used entry at capacity.
func (c *resultCache) Put(key uint64, result ScreenResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.result = result
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}
	e := &lruEntry{key: key, result: result}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called on policy reload.
func (c *resultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns the current cache size.
func (c *resultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *resultCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *resultCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *resultCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *resultCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// PolicyService holds the active policy snapshot and rebuilds it on
// reload. Reads are lock-free via atomic.Value; the mutex only
// serializes Reload.
type PolicyService struct {
	path      string
	evaluator *celeval.Evaluator
	snapshot  atomic.Value // stores *Snapshot
	mu        sync.Mutex   // only for Reload writes
	cache     *resultCache // screening result cache
	logger    *slog.Logger

	watcher *policyWatcher
}

// PolicyServiceOption configures PolicyService.
type PolicyServiceOption func(*PolicyService)

// WithCacheSize sets the maximum number of cached screening results.
func WithCacheSize(size int) PolicyServiceOption {
	return func(s *PolicyService) {
		s.cache = newResultCache(size)
	}
}

// NewPolicyService loads the policy document at path and builds the
// initial snapshot. A load failure here is fatal: the service never
// starts without a valid policy.
func NewPolicyService(path string, logger *slog.Logger, opts ...PolicyServiceOption) (*PolicyService, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("create guard evaluator: %w", err)
	}

	s := &PolicyService{
		path:      path,
		evaluator: evaluator,
		cache:     newResultCache(1000),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := s.buildSnapshot()
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(snap)

	logger.Info("policy loaded",
		"path", path,
		"version", snap.Config.Version,
		"policy_hash", snap.Hash,
		"allowlist", len(snap.Config.Tools.Allowlist),
		"guards", len(snap.guards),
	)
	return s, nil
}

// Current returns the active snapshot. The caller must hold on to the
// returned pointer for the duration of a run rather than re-fetching.
func (s *PolicyService) Current() *Snapshot {
	return s.snapshot.Load().(*Snapshot)
}

// Reload rebuilds the snapshot from disk and swaps it in atomically.
// On failure the previous snapshot stays in force.
func (s *PolicyService) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.buildSnapshot()
	if err != nil {
		return err
	}
	old := s.Current()
	s.snapshot.Store(snap)
	s.cache.Clear()

	s.logger.Info("policy reloaded",
		"version", snap.Config.Version,
		"policy_hash", snap.Hash,
		"previous_hash", old.Hash,
		"guards", len(snap.guards),
	)
	return nil
}

// buildSnapshot loads, validates, and compiles the policy document.
func (s *PolicyService) buildSnapshot() (*Snapshot, error) {
	cfg, err := policy.Load(s.path)
	if err != nil {
		return nil, err
	}

	guards := make([]compiledGuard, 0, len(cfg.Tools.Rules))
	for _, rule := range cfg.Tools.Rules {
		prg, err := s.evaluator.Compile(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("%w: compile guard for %q: %w", policy.ErrPolicyLoad, rule.Tool, err)
		}
		guards = append(guards, compiledGuard{
			toolMatch: rule.Tool,
			condition: rule.Condition,
			program:   prg,
		})
	}

	keywords := make([]string, len(cfg.HighRiskKeywords))
	for i, kw := range cfg.HighRiskKeywords {
		keywords[i] = strings.ToLower(kw)
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.HighRiskPatterns))
	for _, p := range cfg.HighRiskPatterns {
		// Already validated at load time.
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: compile pattern %q: %w", policy.ErrPolicyLoad, p, err)
		}
		patterns = append(patterns, re)
	}

	return &Snapshot{
		Config:    cfg,
		Hash:      policy.Hash(cfg),
		guards:    guards,
		keywords:  keywords,
		patterns:  patterns,
		evaluator: s.evaluator,
	}, nil
}

// ScreenContent checks request content against the high-risk keywords
// and patterns of the active policy. Results are cached per snapshot;
// the cache is cleared on reload.
func (s *PolicyService) ScreenContent(content string) ScreenResult {
	snap := s.Current()
	key := screenCacheKey(snap.Hash, content)
	if result, ok := s.cache.Get(key); ok {
		return result
	}

	result := snap.screen(content)
	s.cache.Put(key, result)
	return result
}

// screen performs the uncached keyword and pattern match.
func (s *Snapshot) screen(content string) ScreenResult {
	lowered := strings.ToLower(content)
	for _, kw := range s.keywords {
		if strings.Contains(lowered, kw) {
			return ScreenResult{Flagged: true, Reason: fmt.Sprintf("high-risk keyword %q", kw)}
		}
	}
	for _, re := range s.patterns {
		if re.MatchString(content) {
			return ScreenResult{Flagged: true, Reason: fmt.Sprintf("high-risk pattern %q", re.String())}
		}
	}
	return ScreenResult{}
}

// screenCacheKey hashes the policy hash and content together so a
// reload can never serve a stale verdict.
func screenCacheKey(policyHash, content string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(policyHash)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(content)
	return h.Sum64()
}

// Close stops the file watcher if one was started.
func (s *PolicyService) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Compile-time interface verification.
var _ registry.Snapshot = (*Snapshot)(nil)
