// Package sync holds the per-entity synchronization model: load the
// latest record when the owner becomes known, edit a local draft, persist
// it by upsert, and optionally receive push updates.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

// State of one controller. Idle is also reachable directly after a push
// update.
type State int

const (
	StateLoading State = iota
	StateIdle
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Notifier surfaces transient save/load feedback to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Controller drives one entity section: a draft of raw per-field input,
// the Loading/Idle/Saving state machine, and the store calls behind it.
// All methods are safe for concurrent use. One controller per entity;
// controllers are fully independent of each other.
type Controller struct {
	schema   ledger.Schema
	store    storage.Store
	notifier Notifier
	log      *slog.Logger

	mu     gosync.RWMutex
	owner  string
	state  State
	draft  map[string]string
	sub    storage.Subscription
	closed bool
	// gen invalidates in-flight results when the owner changes or the
	// controller is closed; late responses are discarded, never applied.
	gen int
}

func NewController(schema ledger.Schema, store storage.Store, notifier Notifier, log *slog.Logger) *Controller {
	return &Controller{
		schema:   schema,
		store:    store,
		notifier: notifier,
		log:      log.With("component", "controller", "entity", schema.Entity),
		state:    StateLoading,
		draft:    schema.Draft(nil),
	}
}

func (c *Controller) Entity() ledger.Entity { return c.schema.Entity }
func (c *Controller) Schema() ledger.Schema { return c.schema }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Saving reports whether a save is in flight; the save control is
// disabled while it is. Best effort only: nothing hard-blocks a second
// save triggered through a non-UI path.
func (c *Controller) Saving() bool {
	return c.State() == StateSaving
}

// Draft returns a copy of the raw per-field input.
func (c *Controller) Draft() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.draft))
	for k, v := range c.draft {
		out[k] = v
	}
	return out
}

// SetField mutates one draft field locally. No network effect; allowed
// in any state. A save already in flight keeps the values it was
// triggered with.
func (c *Controller) SetField(name, raw string) error {
	if !c.schema.HasField(name) {
		return fmt.Errorf("%s has no field %q", c.schema.Entity, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft[name] = raw
	return nil
}

// SetOwner reacts to owner availability: enters Loading, fetches the
// latest record and populates the draft. A fetch failure is reported and
// the controller still reaches Idle — with the store's stale cached
// record when one is offered, empty defaults otherwise. An empty owner
// resets the controller to the signed-out state.
func (c *Controller) SetOwner(ctx context.Context, owner string) {
	c.mu.Lock()
	if c.closed || owner == c.owner {
		c.mu.Unlock()
		return
	}
	c.gen++
	myGen := c.gen
	c.owner = owner
	c.state = StateLoading
	c.draft = c.schema.Draft(nil)
	if owner == "" {
		c.state = StateIdle
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	rec, err := c.store.FetchLatest(ctx, c.schema.Entity, owner)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != myGen {
		// Владелец сменился, пока запрос был в полете — результат устарел.
		return
	}

	if err != nil {
		c.log.Warn("fetch latest failed", "owner", owner, "error", err)
		c.notifier.Error(fetchErrorMessage(err, c.schema))
	}
	if rec != nil {
		c.draft = c.schema.Draft(rec)
	}
	c.state = StateIdle
}

// Owner returns the identifier all loads and saves are scoped to.
func (c *Controller) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// Save normalizes the draft and upserts it as the full record for the
// owner. On success the draft reflects the written record and a success
// toast is shown; on failure the draft is left as-is for a retry and an
// error toast is shown. Either way the controller returns to Idle.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("controller closed")
	}
	if c.owner == "" {
		c.mu.Unlock()
		return fmt.Errorf("no owner identifier yet")
	}
	myGen := c.gen
	values, err := c.schema.Normalize(c.draft)
	if err != nil {
		c.mu.Unlock()
		c.notifier.Error(err.Error())
		return err
	}
	owner := c.owner
	c.state = StateSaving
	c.mu.Unlock()

	rec, err := c.store.Upsert(ctx, c.schema.Entity, owner, values)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != myGen {
		return nil
	}
	c.state = StateIdle

	if err != nil {
		c.log.Warn("upsert failed", "owner", owner, "error", err)
		c.notifier.Error(saveErrorMessage(err, c.schema))
		return err
	}

	if rec != nil {
		c.draft = c.schema.Draft(rec)
	}
	c.notifier.Success(c.schema.SavedMessage)
	return nil
}

// ApplyPush overwrites the draft from a server-pushed record,
// unconditionally and in any state — last writer wins from the server's
// perspective, including over an unsaved local edit. Records for a
// different owner are ignored defensively even though the transport
// already filters by owner.
func (c *Controller) ApplyPush(rec ledger.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.owner == "" || rec.Owner != c.owner {
		return
	}
	c.draft = c.schema.Draft(&rec)
	if c.state == StateLoading {
		c.state = StateIdle
	}
}

// Subscribe attaches the controller to a change feed for its owner.
func (c *Controller) Subscribe(ctx context.Context, feed storage.Feed) error {
	c.mu.RLock()
	owner := c.owner
	c.mu.RUnlock()
	if owner == "" {
		return fmt.Errorf("no owner identifier yet")
	}

	sub, err := feed.Subscribe(ctx, c.schema.Entity, owner, c.ApplyPush)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.sub != nil {
		c.sub.Cancel()
	}
	c.sub = sub
	c.mu.Unlock()
	return nil
}

// Close cancels the subscription and marks the controller dead: results
// of in-flight fetches and saves arriving afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	if c.sub != nil {
		c.sub.Cancel()
		c.sub = nil
	}
}

func fetchErrorMessage(err error, schema ledger.Schema) string {
	var se *storage.StoreError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fmt.Sprintf("Error loading %s", schema.Title)
}

func saveErrorMessage(err error, schema ledger.Schema) string {
	var se *storage.StoreError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return schema.SaveErrorMessage
}
