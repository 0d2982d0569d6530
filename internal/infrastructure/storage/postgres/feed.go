package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

// notifyChannel is the Postgres NOTIFY channel the backend's row
// triggers publish changes to.
const notifyChannel = "smart_ledger_changes"

const reconnectDelay = 2 * time.Second

// changePayload is the JSON body of one NOTIFY message.
type changePayload struct {
	Table   string        `json:"table"`
	OwnerID string        `json:"owner_id"`
	Values  ledger.Values `json:"values"`
}

type subscriber struct {
	id       int
	entity   ledger.Entity
	owner    string
	onChange func(ledger.Record)
}

// listener holds one dedicated connection in LISTEN mode and fans
// notifications out to subscribers. The connection is (re)acquired
// lazily: with no subscribers nothing is listening.
type listener struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	mu      gosync.Mutex
	subs    map[int]*subscriber
	nextID  int
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newListener(pool *pgxpool.Pool, log *slog.Logger) *listener {
	return &listener{
		pool: pool,
		log:  log.With("component", "change_feed"),
		subs: make(map[int]*subscriber),
	}
}

// Subscribe registers a callback for changes to the entity's row of the
// given owner. The feed starts listening on first subscription.
func (s *Storage) Subscribe(ctx context.Context, entity ledger.Entity, owner string, onChange func(ledger.Record)) (storage.Subscription, error) {
	if _, err := ledger.ParseEntity(string(entity)); err != nil {
		return nil, err
	}
	return s.feed.subscribe(entity, owner, onChange), nil
}

func (l *listener) subscribe(entity ledger.Entity, owner string, onChange func(ledger.Record)) storage.Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	sub := &subscriber{
		id:       l.nextID,
		entity:   entity,
		owner:    owner,
		onChange: onChange,
	}
	l.subs[sub.id] = sub

	if !l.running {
		ctx, cancel := context.WithCancel(context.Background())
		l.cancel = cancel
		l.done = make(chan struct{})
		l.running = true
		go l.run(ctx, l.done)
	}

	return &subscription{listener: l, id: sub.id}
}

type subscription struct {
	listener *listener
	once     gosync.Once
	id       int
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.listener.unsubscribe(s.id)
	})
}

func (l *listener) unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, id)
	if len(l.subs) == 0 && l.running {
		l.cancel()
		l.running = false
	}
}

func (l *listener) shutdown() {
	l.mu.Lock()
	var done chan struct{}
	if l.running {
		l.cancel()
		l.running = false
		done = l.done
	}
	l.subs = make(map[int]*subscriber)
	l.mu.Unlock()

	if done != nil {
		<-done
	}
}

// run keeps a LISTEN connection alive until the context is cancelled,
// reacquiring it after errors.
func (l *listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Error("change feed connection lost", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	// Hijack removes the connection from the pool: a LISTEN session
	// must not be handed out for queries.
	raw := conn.Hijack()
	defer raw.Close(context.Background())

	if _, err := raw.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	l.log.Debug("change feed listening", "channel", notifyChannel)

	for {
		notification, err := raw.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.dispatch(notification.Payload)
	}
}

func (l *listener) dispatch(payload string) {
	change, err := parsePayload(payload)
	if err != nil {
		l.log.Warn("skipping malformed change payload", "error", err)
		return
	}

	record := ledger.Record{
		Owner:     change.OwnerID,
		Values:    ledger.SchemaOf(ledger.Entity(change.Table)).Coerce(change.Values),
		UpdatedAt: time.Now(),
	}

	l.mu.Lock()
	targets := make([]*subscriber, 0, len(l.subs))
	for _, sub := range l.subs {
		if string(sub.entity) == change.Table && sub.owner == change.OwnerID {
			targets = append(targets, sub)
		}
	}
	l.mu.Unlock()

	for _, sub := range targets {
		sub.onChange(ledger.Record{
			Owner:     record.Owner,
			Values:    record.Values.Clone(),
			UpdatedAt: record.UpdatedAt,
		})
	}
}

// parsePayload decodes one NOTIFY body and validates its table name.
func parsePayload(payload string) (changePayload, error) {
	var change changePayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return changePayload{}, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := ledger.ParseEntity(change.Table); err != nil {
		return changePayload{}, fmt.Errorf("payload table %q: %w", change.Table, err)
	}
	if change.OwnerID == "" {
		return changePayload{}, fmt.Errorf("payload without owner")
	}
	return change, nil
}
