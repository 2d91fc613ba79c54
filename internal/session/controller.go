// Package session holds the state of one ChatBox session and the actions
// that mutate it.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/artifact"
	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/generator"
	"github.com/hpungsan/chatbox/internal/metrics"
	"github.com/hpungsan/chatbox/internal/project"
)

// Controller owns the session state. Every action takes the lock briefly;
// the lock is never held while the generator runs, so State stays readable
// during a generation.
type Controller struct {
	gen     generator.Generator
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	state     State
	entropy   io.Reader
	observers map[uint64]func(State)
	nextObs   uint64
}

// New creates a Controller seeded with the welcome entry and the configured
// default prompt. logger and m may be nil.
func New(gen generator.Generator, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	prompt := config.DefaultPrompt
	if cfg != nil && cfg.DefaultPrompt != "" {
		prompt = cfg.DefaultPrompt
	}

	c := &Controller{
		gen:       gen,
		logger:    logger.Named("session"),
		metrics:   m,
		entropy:   ulid.Monotonic(rand.Reader, 0),
		observers: make(map[uint64]func(State)),
		state: State{
			Prompt:    prompt,
			ActiveTab: TabCode,
		},
	}
	c.appendLocked(RoleSystem, WelcomeMessage)
	return c
}

// State returns a deep copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to be called with a fresh snapshot after every state
// change. The returned func removes the observer.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// SetPrompt replaces the prompt text.
func (c *Controller) SetPrompt(text string) {
	c.mu.Lock()
	c.state.Prompt = text
	c.mu.Unlock()
	c.notify()
}

// Submit records text as the current prompt and runs a generation. It
// blocks until the generation resolves and reports whether one was started.
// Blank text, or a generation already in flight, makes it a no-op.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	if !c.begin(text) {
		return false
	}
	c.run(ctx, text)
	return true
}

// SubmitAsync is Submit without the wait: admission happens before it
// returns and the generation continues in the background. done is closed
// when the generation resolves; it is nil when the submit was a no-op.
func (c *Controller) SubmitAsync(ctx context.Context, text string) (accepted bool, done <-chan struct{}) {
	if !c.begin(text) {
		return false, nil
	}
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		c.run(ctx, text)
	}()
	return true, ch
}

// begin applies the admission rule and, when admitted, moves the session
// into the loading state.
func (c *Controller) begin(text string) bool {
	c.mu.Lock()
	c.state.Prompt = text
	if strings.TrimSpace(text) == "" || c.state.Loading {
		busy := c.state.Loading
		c.mu.Unlock()
		if busy {
			c.logger.Debug("submit ignored: generation in flight")
			c.metrics.ObserveGeneration(metrics.OutcomeRejectedBusy, 0)
		}
		c.notify()
		return false
	}

	c.appendLocked(RoleUser, text)
	c.state.Error = ""
	c.state.ErrorCode = ""
	c.state.Project = nil
	c.state.Prompt = ""
	c.state.Loading = true
	c.mu.Unlock()
	c.notify()
	return true
}

// run calls the generator. The deferred complete releases the loading flag
// on every path, including a panic inside the generator.
func (c *Controller) run(ctx context.Context, text string) {
	start := time.Now()
	var (
		p   *project.Project
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("generator panicked", zap.Any("panic", r))
			p, err = nil, errors.NewGenerationFailed(fmt.Errorf("panic: %v", r))
		}
		c.complete(p, err, time.Since(start))
	}()

	p, err = c.gen.Generate(ctx, text)
}

// complete stores the outcome of a generation and releases the loading flag.
func (c *Controller) complete(p *project.Project, err error, elapsed time.Duration) {
	if err == nil && p == nil {
		err = errors.NewGenerationFailed(fmt.Errorf("generator returned no project"))
	}

	outcome := metrics.OutcomeSuccess
	c.mu.Lock()
	c.state.Loading = false
	if err != nil {
		msg, code := userMessage(err)
		c.state.Error, c.state.ErrorCode = msg, code
		c.appendLocked(RoleSystem, systemReply(msg))
		outcome = metrics.OutcomeFailed
		if errors.Is(err, errors.ErrImageAbsent) {
			outcome = metrics.OutcomeImageAbsent
		}
	} else {
		c.state.Project = p.Clone()
		c.appendLocked(RoleModel, modelReply(p.ProjectName))
	}
	c.mu.Unlock()

	c.metrics.ObserveGeneration(outcome, elapsed)
	c.notify()
}

// SelectTab switches the active output panel. Unknown tabs are rejected and
// leave the state untouched.
func (c *Controller) SelectTab(tab Tab) error {
	if _, ok := ParseTab(string(tab)); !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown tab %q: must be one of code, bom, schematic", tab))
	}
	c.mu.Lock()
	c.state.ActiveTab = tab
	c.mu.Unlock()
	c.notify()
	return nil
}

// ExportCode returns the firmware sketch, or nil when there is no project.
func (c *Controller) ExportCode() (*artifact.Artifact, error) {
	return c.Export(artifact.KindCode)
}

// ExportBOM returns the bill of materials CSV, or nil when there is no project.
func (c *Controller) ExportBOM() (*artifact.Artifact, error) {
	return c.Export(artifact.KindBOM)
}

// ExportSchematic returns the decoded schematic image, or nil when there is
// no project. An undecodable payload is recorded as the session error.
func (c *Controller) ExportSchematic() (*artifact.Artifact, error) {
	return c.Export(artifact.KindSchematic)
}

// Export projects the current project into an artifact of the given kind.
// Returns (nil, nil) when there is no project.
func (c *Controller) Export(kind artifact.Kind) (*artifact.Artifact, error) {
	c.mu.Lock()
	p := c.state.Project.Clone()
	c.mu.Unlock()
	if p == nil {
		return nil, nil
	}

	a, err := artifact.Build(p, kind)
	c.metrics.ObserveExport(string(kind), err == nil)
	if err != nil {
		if errors.Is(err, errors.ErrExportFailed) {
			c.logger.Warn("export failed", zap.String("kind", string(kind)), zap.Error(err))
			c.mu.Lock()
			c.state.Error, c.state.ErrorCode = userMessage(err)
			c.mu.Unlock()
			c.notify()
		}
		return nil, err
	}
	return a, nil
}

// appendLocked adds a chat entry. c.mu must be held.
func (c *Controller) appendLocked(role Role, content string) {
	now := time.Now()
	c.state.Chat = append(c.state.Chat, ChatEntry{
		ID:        ulid.MustNew(ulid.Timestamp(now), c.entropy).String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
}

// notify calls every observer with a snapshot, outside the lock.
func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := c.state.clone()
	fns := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for i, fn := range fns {
		if i > 0 {
			snapshot = snapshot.clone()
		}
		fn(snapshot)
	}
}

// userMessage extracts the user-facing text and code of err. Errors without
// a structured message are reported as the generic generation failure.
func userMessage(err error) (string, errors.ErrorCode) {
	if cErr, ok := errors.As(err); ok && cErr.Message != "" {
		return cErr.Message, cErr.Code
	}
	return errors.MsgGenerationFailed, errors.ErrGenerationFailed
}
