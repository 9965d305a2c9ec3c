package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-accounts/domain"
	"bank-accounts/events"
	"bank-accounts/shared"
	"bank-accounts/store"
)

// registryStreamID is the reserved stream the registry appends its own
// AccountRegistered events to. Account identifiers are UUIDs, so the prefix
// cannot collide.
const registryStreamID = "$registry"

const (
	DefaultReplyTimeout      = 5 * time.Second
	DefaultMailboxSize       = 64
	DefaultSnapshotFrequency = 100
)

var (
	// ErrReplyTimeout is returned when no reply arrived within the deadline.
	// It covers silent persistence failures and dead entities; the command may
	// or may not have been applied, so retries can double-apply.
	ErrReplyTimeout = errors.New("timed out waiting for account reply")

	// ErrRegistryStopped is returned for commands issued after Stop.
	ErrRegistryStopped = errors.New("account registry is stopped")

	// ErrMailboxFull is the overflow rejection when an entity's mailbox has no
	// room; the registry refuses to block its own loop on a slow entity.
	ErrMailboxFull = errors.New("account mailbox is full")
)

// Registry owns the identifier set and the identifier-to-entity map. Both are
// mutated exclusively from the registry's own sequential loop; everything
// reaches that loop as a message. Unrelated accounts run fully concurrently
// because each lives on its own goroutine; the registry only allocates,
// spawns, and forwards, never waiting on an entity to process a command.
type Registry struct {
	eventStore    store.EventStore
	snapshotStore store.SnapshotStore
	newID         func() string
	replyTimeout  time.Duration
	mailboxSize   int
	snapshotEvery int

	mailbox  chan Command
	failures chan entityFailure
	stopped  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Owned exclusively by the run loop.
	known    map[string]bool
	live     map[string]*accountEntity
	version  int // head version of the registry's own stream
	entities sync.WaitGroup
}

type Option func(*Registry)

// WithIDGenerator replaces the account identifier generator (default: UUIDs).
func WithIDGenerator(generate func() string) Option {
	return func(r *Registry) { r.newID = generate }
}

func WithReplyTimeout(timeout time.Duration) Option {
	return func(r *Registry) { r.replyTimeout = timeout }
}

func WithMailboxSize(size int) Option {
	return func(r *Registry) { r.mailboxSize = size }
}

func WithSnapshotFrequency(every int) Option {
	return func(r *Registry) { r.snapshotEvery = every }
}

// NewRegistry recovers the identifier set from the registry stream and starts
// the routing loop. Entities are not instantiated here; each is lazily
// spawned (and replayed) on the first command routed to it, so startup cost
// does not scale with the total number of accounts.
func NewRegistry(es store.EventStore, ss store.SnapshotStore, opts ...Option) (*Registry, error) {
	if es == nil {
		return nil, errors.New("event store must not be nil")
	}

	r := &Registry{
		eventStore:    es,
		snapshotStore: ss,
		newID:         uuid.NewString,
		replyTimeout:  DefaultReplyTimeout,
		mailboxSize:   DefaultMailboxSize,
		snapshotEvery: DefaultSnapshotFrequency,
		failures:      make(chan entityFailure, 16),
		stopped:       make(chan struct{}),
		done:          make(chan struct{}),
		known:         make(map[string]bool),
		live:          make(map[string]*accountEntity),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mailbox = make(chan Command, r.mailboxSize)

	if err := r.recover(); err != nil {
		return nil, err
	}

	go r.run()
	return r, nil
}

// recover rebuilds the known identifier set by replaying the registry stream.
// A registry stream that cannot be folded is a fatal startup error.
func (r *Registry) recover() error {
	history, err := r.eventStore.GetEvents(registryStreamID)
	if err != nil {
		return fmt.Errorf("failed to load registry stream: %w", err)
	}
	for _, event := range history {
		registered, ok := event.(events.AccountRegisteredEvent)
		if !ok {
			return fmt.Errorf("registry stream corrupt: unexpected event %T at version %d", event, event.GetBase().Version)
		}
		if registered.Version != r.version+1 {
			return fmt.Errorf("registry stream corrupt: expected version %d, got %d", r.version+1, registered.Version)
		}
		r.known[registered.AccountID] = true
		r.version = registered.Version
	}
	if len(r.known) > 0 {
		log.Printf("Registry recovered %d account identifier(s) from the event log", len(r.known))
	}
	return nil
}

func (r *Registry) run() {
	defer close(r.done)
	for {
		select {
		case cmd := <-r.mailbox:
			r.dispatch(cmd)
		case failure := <-r.failures:
			log.Printf("CRITICAL: account entity %s failed to recover and was evicted: %v", failure.accountID, failure.err)
			delete(r.live, failure.accountID)
		case <-r.stopped:
			for _, entity := range r.live {
				close(entity.mailbox)
			}
			r.entities.Wait()
			return
		}
	}
}

func (r *Registry) dispatch(cmd Command) {
	switch c := cmd.(type) {
	case CreateAccountCommand:
		id := r.newID()
		record := events.AccountRegisteredEvent{
			BaseEvent: events.NewBaseEvent(registryStreamID, r.version+1, events.AccountRegisteredType),
			AccountID: id,
		}
		// Durable before the entity exists, so the identifier survives a crash
		// even if the entity never persisted anything.
		if err := r.eventStore.SaveEvents(registryStreamID, r.version, []events.Event{record}); err != nil {
			log.Printf("ERROR: recording new account %s failed, command abandoned: %v", id, err)
			return
		}
		r.version = record.Version
		r.known[id] = true

		c.AccountID = id
		r.forward(r.spawn(id), c)

	case ChangeBalanceCommand:
		if !r.known[c.AccountID] {
			reject(cmd, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, c.AccountID))
			return
		}
		r.forward(r.resident(c.AccountID), c)

	case GetAccountCommand:
		if !r.known[c.AccountID] {
			reject(cmd, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, c.AccountID))
			return
		}
		r.forward(r.resident(c.AccountID), c)

	default:
		log.Printf("ERROR: registry received unknown command %T", cmd)
	}
}

// forward hands a command to an entity's mailbox without ever blocking the
// registry loop. Overflow is a typed rejection rather than a stall.
func (r *Registry) forward(entity *accountEntity, cmd Command) {
	select {
	case entity.mailbox <- cmd:
	default:
		log.Printf("Warning: mailbox full for account %s, rejecting %T", entity.id, cmd)
		reject(cmd, fmt.Errorf("%w: %s", ErrMailboxFull, entity.id))
	}
}

// resident returns the live entity for a known identifier, spawning (and
// replaying) it on first reference.
func (r *Registry) resident(id string) *accountEntity {
	if entity, ok := r.live[id]; ok {
		return entity
	}
	return r.spawn(id)
}

func (r *Registry) spawn(id string) *accountEntity {
	entity := newAccountEntity(id, r.eventStore, r.snapshotStore, r.mailboxSize, r.snapshotEvery, r.failures)
	r.live[id] = entity
	r.entities.Add(1)
	go func() {
		defer r.entities.Done()
		entity.run()
	}()
	return entity
}

// Stop shuts the registry down: the loop closes every entity mailbox (it is
// their only sender), entities finish their queued commands, then the loop
// returns. Stop blocks until the drain is complete.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopped) })
	<-r.done
}

// --- Caller facade ---
// These wrap command construction, submission, and the one-shot reply await.
// The timeout is caller-local; it does not cancel in-flight entity work,
// which completes and discards its reply if nobody is listening anymore.

// Open allocates a new account and returns its identifier.
func (r *Registry) Open(owner string, currency shared.Currency, initialBalance decimal.Decimal) (string, error) {
	reply := make(chan CreateAccountResult, 1)
	if err := r.send(CreateAccountCommand{Owner: owner, Currency: currency, InitialBalance: initialBalance, Reply: reply}); err != nil {
		return "", err
	}
	result, err := await(reply, r.replyTimeout)
	if err != nil {
		return "", err
	}
	if result.Err != nil {
		return "", result.Err
	}
	return result.AccountID, nil
}

// ChangeBalance applies a signed delta and returns the new account state.
func (r *Registry) ChangeBalance(id string, delta decimal.Decimal) (*domain.Account, error) {
	reply := make(chan ChangeBalanceResult, 1)
	if err := r.send(ChangeBalanceCommand{AccountID: id, Delta: delta, Reply: reply}); err != nil {
		return nil, err
	}
	result, err := await(reply, r.replyTimeout)
	if err != nil {
		return nil, err
	}
	return result.Account, result.Err
}

// Get returns current account state, or ErrAccountNotFound.
func (r *Registry) Get(id string) (*domain.Account, error) {
	reply := make(chan GetAccountResult, 1)
	if err := r.send(GetAccountCommand{AccountID: id, Reply: reply}); err != nil {
		return nil, err
	}
	result, err := await(reply, r.replyTimeout)
	if err != nil {
		return nil, err
	}
	return result.Account, result.Err
}

// History returns a page of an account's event stream, oldest first. It is a
// read against the log and bypasses the entity; an empty stream means the
// account never existed.
func (r *Registry) History(id string, skip, limit int) ([]events.Event, error) {
	history, err := r.eventStore.GetEvents(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event history for account %s: %w", id, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	totalEvents := len(history)
	start := skip
	if start < 0 {
		start = 0
	}
	if start >= totalEvents {
		return []events.Event{}, nil
	}
	end := start + limit
	if limit <= 0 || end > totalEvents {
		end = totalEvents
	}
	return history[start:end], nil
}

func (r *Registry) send(cmd Command) error {
	select {
	case <-r.stopped:
		return ErrRegistryStopped
	default:
	}
	select {
	case r.mailbox <- cmd:
		return nil
	case <-r.stopped:
		return ErrRegistryStopped
	}
}

// await resolves a one-shot reply with an upper-bound timeout.
func await[T any](reply <-chan T, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case result := <-reply:
		return result, nil
	case <-timer.C:
		var zero T
		return zero, ErrReplyTimeout
	}
}
