// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vinayakkamatcodes/nanoMind/internal/engine"
	"github.com/vinayakkamatcodes/nanoMind/internal/model"
	"github.com/vinayakkamatcodes/nanoMind/internal/store"
)

// DefaultContextLength is the context window requested from the engine when
// Config leaves it unset.
const DefaultContextLength = 2048

// Rejected submissions. The UI treats both as silent no-ops.
var (
	ErrBlankPrompt = errors.New("prompt is blank")
	ErrBusy        = errors.New("generation already in progress")
	ErrClosed      = errors.New("coordinator closed")
)

// =============================================================================
// STATE
// =============================================================================

// State is the coordinator's position in the generation lifecycle.
type State int

const (
	Idle State = iota
	AwaitingFirstToken
	Streaming
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstToken:
		return "awaiting-first-token"
	case Streaming:
		return "streaming"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Recorder persists finished exchanges. Errors are logged and otherwise
// ignored.
type Recorder interface {
	RecordExchange(ctx context.Context, ex model.Exchange) error
}

// Config configures a Coordinator. Zero values select defaults.
type Config struct {
	SystemPrompt  string
	ContextLength int
	Logger        *slog.Logger
	Recorder      Recorder

	// Now is the clock used for timing; defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// SESSION
// =============================================================================

// session is one in-flight generation.
type session struct {
	seq      uint64
	userText string
	prompt   string
	index    int
	start    time.Time
	stats    *model.Statistics
	text     strings.Builder

	sub    *engine.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// teardown cancels the consumer and closes the subscription. Only the first
// call has any effect.
func (s *session) teardown() {
	s.once.Do(func() {
		s.cancel()
		s.sub.Close()
	})
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator maps engine events onto store mutations for one session at a
// time.
type Coordinator struct {
	store    *store.Store
	engine   engine.Engine
	bus      *engine.Bus
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	systemPrompt  string
	contextLength int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	session *session
	seq     uint64
	loadSub *engine.Subscription
	closed  bool
}

// New creates a coordinator. eng must publish its events on bus.
func New(st *store.Store, eng engine.Engine, bus *engine.Bus, cfg Config) *Coordinator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.ContextLength <= 0 {
		cfg.ContextLength = DefaultContextLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:         st,
		engine:        eng,
		bus:           bus,
		logger:        logger.With("component", "generation"),
		recorder:      cfg.Recorder,
		now:           cfg.Now,
		systemPrompt:  cfg.SystemPrompt,
		contextLength: cfg.ContextLength,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Store returns the store the coordinator writes to.
func (c *Coordinator) Store() *store.Store { return c.store }

// Submit starts a generation for prompt. It returns ErrBlankPrompt or
// ErrBusy without touching the store when the submission is rejected.
// Engine failures are reported through the store's status, not here.
func (c *Coordinator) Submit(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrBlankPrompt
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Subscribe outside c.mu: under the Block policy a publisher can be
	// waiting on a consumer that needs c.mu.
	sctx, cancel := context.WithCancel(c.ctx)
	sub := c.bus.Subscribe(sctx)

	c.mu.Lock()
	if c.closed || c.state != Idle {
		err := ErrBusy
		if c.closed {
			err = ErrClosed
		}
		c.mu.Unlock()
		cancel()
		sub.Close()
		return err
	}

	c.store.SetBusy(true)
	c.store.SetStatus(model.StatusGenerating)
	c.store.AppendMessage(model.NewUserMessage(prompt))
	index := c.store.AppendMessage(model.NewAssistantPlaceholder())
	start := c.now()

	prev := c.session
	c.seq++
	sess := &session{
		seq:      c.seq,
		userText: prompt,
		prompt:   RenderPrompt(c.systemPrompt, prompt),
		index:    index,
		start:    start,
		stats:    model.NewStatistics(start),
		sub:      sub,
		ctx:      sctx,
		cancel:   cancel,
	}
	c.session = sess
	c.state = AwaitingFirstToken
	c.wg.Add(1)
	go c.consume(sess)
	c.mu.Unlock()

	if prev != nil {
		prev.teardown()
	}

	c.logger.Info("generation started", "session", sess.seq, "prompt_chars", len(prompt))

	if err := c.engine.Predict(engine.WithSession(sctx, sess.seq), sess.prompt); err != nil {
		c.logger.Error("predict failed", "session", sess.seq, "error", err)

		c.mu.Lock()
		var ex *model.Exchange
		if c.session == sess {
			ex = c.finishLocked(sess, err.Error())
		}
		c.mu.Unlock()

		sess.teardown()
		if ex != nil {
			c.record(*ex)
		}
	}
	return nil
}

// consume delivers session events until the session ends or is cancelled.
func (c *Coordinator) consume(sess *session) {
	defer c.wg.Done()

	events := sess.sub.Events()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if sess.ctx.Err() != nil {
				return
			}
			done, ex := c.handle(sess, ev)
			if done {
				sess.teardown()
				if ex != nil {
					c.record(*ex)
				}
				return
			}
		}
	}
}

// handle applies one event. It reports whether the session is over.
func (c *Coordinator) handle(sess *session, ev engine.Event) (bool, *model.Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != sess {
		return true, nil
	}
	if ev.Session != 0 && ev.Session != sess.seq {
		c.logger.Debug("ignoring event from another session",
			"session", sess.seq, "event_session", ev.Session, "kind", ev.Kind)
		return false, nil
	}

	switch ev.Kind {
	case engine.KindOngoing:
		sess.text.WriteString(ev.Word)
		sess.stats.RecordToken(c.now())
		c.state = Streaming
		if err := c.store.ReplaceText(sess.index, sess.text.String()); err != nil {
			c.logger.Warn("placeholder missing", "session", sess.seq, "error", err)
		}
		return false, nil
	case engine.KindDone:
		return true, c.finishLocked(sess, "")
	case engine.KindError:
		return true, c.finishLocked(sess, ev.Message)
	default:
		return false, nil
	}
}

// finishLocked ends sess and returns the exchange to record, if any. The
// caller tears the session down after releasing c.mu.
func (c *Coordinator) finishLocked(sess *session, failure string) *model.Exchange {
	c.state = Terminating
	end := c.now()
	sess.stats.Finalize(end)

	if failure == "" {
		c.store.SetStatus(model.StatusInferenceTime(end.Sub(sess.start)))
		c.store.SetBusy(false)
	} else {
		c.store.SetStatus(model.StatusError(failure))
		c.store.SetBusy(false)
		c.dropPlaceholderLocked(sess)
	}

	c.session = nil
	c.state = Idle

	c.logger.Info("generation finished",
		"session", sess.seq,
		"failed", failure != "",
		"elapsed_ms", sess.stats.TotalDuration.Milliseconds(),
		"ttft_ms", sess.stats.TTFT.Milliseconds(),
		"token_events", sess.stats.TokenEvents,
		"dropped", sess.sub.Dropped())

	if c.recorder == nil {
		return nil
	}
	return &model.Exchange{
		Session:   sess.seq,
		Prompt:    sess.userText,
		Response:  sess.text.String(),
		Error:     failure,
		StartedAt: sess.start,
		Stats:     *sess.stats,
	}
}

func (c *Coordinator) dropPlaceholderLocked(sess *session) {
	if c.store.Len()-1 != sess.index {
		c.logger.Warn("placeholder is not the last message, leaving conversation as is",
			"session", sess.seq, "index", sess.index)
		return
	}
	c.store.DropLast()
}

func (c *Coordinator) record(ex model.Exchange) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.recorder.RecordExchange(ctx, ex); err != nil {
		c.logger.Warn("failed to record exchange", "session", ex.Session, "error", err)
	}
}

// ClearConversation empties the conversation. It is refused while a
// generation is in progress.
func (c *Coordinator) ClearConversation() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != Idle {
		return ErrBusy
	}
	c.store.Clear()
	return nil
}

// RestoreConversation replaces the conversation with msgs, for reopening a
// saved transcript. It is refused while a generation is in progress.
func (c *Coordinator) RestoreConversation(msgs []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != Idle {
		return ErrBusy
	}
	c.store.Restore(msgs)
	return nil
}

// =============================================================================
// MODEL LOADING
// =============================================================================

// LoadModel asks the engine to load the model at path. Progress is shown in
// the store's status. The returned error is the synchronous Load failure,
// which is also reflected in the status.
func (c *Coordinator) LoadModel(ctx context.Context, path string) error {
	sub := c.bus.Subscribe(c.ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	c.store.SetStatus(model.StatusLoading)
	prev := c.loadSub
	c.loadSub = sub
	c.wg.Add(1)
	go c.listenLoad(sub)
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	c.logger.Info("loading model", "path", path, "context_length", c.contextLength)

	err := c.engine.Load(ctx, path, c.contextLength, func(contextID int) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.store.SetStatus(model.StatusModelReady)
		c.logger.Info("model ready", "context_id", contextID)
	})
	if err != nil {
		c.logger.Error("model load failed", "path", path, "error", err)
		c.mu.Lock()
		if !c.closed {
			c.store.SetStatus(model.StatusLoadError(err.Error()))
		}
		if c.loadSub == sub {
			c.loadSub = nil
		}
		c.mu.Unlock()
		sub.Close()
		return err
	}
	return nil
}

// ReportLoadFailure shows err as a load failure without asking the engine,
// for models that could not be located before loading.
func (c *Coordinator) ReportLoadFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.store.SetStatus(model.StatusLoadError(err.Error()))
}

// listenLoad watches untagged events until the first Loaded or Error.
func (c *Coordinator) listenLoad(sub *engine.Subscription) {
	defer c.wg.Done()
	defer sub.Close()

	for ev := range sub.Events() {
		if ev.Session != 0 {
			continue
		}
		switch ev.Kind {
		case engine.KindLoaded:
			c.logger.Info("model loaded", "path", ev.Path)
			c.detachLoad(sub, "")
			return
		case engine.KindError:
			c.logger.Error("model load reported error", "error", ev.Message)
			c.detachLoad(sub, ev.Message)
			return
		}
	}
}

func (c *Coordinator) detachLoad(sub *engine.Subscription, failure string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadSub != sub {
		return
	}
	c.loadSub = nil
	if failure != "" && !c.closed {
		c.store.SetStatus(model.StatusError(failure))
	}
}

// =============================================================================
// SHUTDOWN
// =============================================================================

// Close cancels the active session and load listener, aborts and releases
// the engine, and waits for background goroutines. It is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sess := c.session
	c.session = nil
	c.state = Idle
	loadSub := c.loadSub
	c.loadSub = nil
	if sess != nil {
		c.store.SetBusy(false)
		c.store.SetStatus(model.StatusReady)
	}
	c.cancel()
	c.mu.Unlock()

	if sess != nil {
		sess.teardown()
	}
	if loadSub != nil {
		loadSub.Close()
	}

	c.engine.Abort()
	err := c.engine.Release()
	c.wg.Wait()

	c.logger.Info("coordinator closed")
	return err
}
