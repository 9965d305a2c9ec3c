package app

import (
	"fmt"
	"log"

	"bank-accounts/domain"
	"bank-accounts/events"
	"bank-accounts/store"
)

// entityFailure is the supervision signal an entity raises when it cannot
// come up from its event stream. The registry loop consumes it and evicts the
// dead entity so a later command retries the replay.
type entityFailure struct {
	accountID string
	err       error
}

// accountEntity is the sole owner of one account's state and the only writer
// of its event stream. All commands for the identifier flow through its
// mailbox and are processed strictly one at a time, in arrival order; that is
// the entire concurrency story for a single account.
type accountEntity struct {
	id            string
	eventStore    store.EventStore
	snapshotStore store.SnapshotStore
	snapshotEvery int
	mailbox       chan Command
	state         *domain.Account
	failures      chan<- entityFailure
}

func newAccountEntity(id string, es store.EventStore, ss store.SnapshotStore, mailboxSize, snapshotEvery int, failures chan<- entityFailure) *accountEntity {
	return &accountEntity{
		id:            id,
		eventStore:    es,
		snapshotStore: ss,
		snapshotEvery: snapshotEvery,
		mailbox:       make(chan Command, mailboxSize),
		failures:      failures,
	}
}

// run rebuilds state by replay and then serves the mailbox until the registry
// closes it. A failed replay is fatal for the entity: it must not guess at
// state, so it reports to supervision and stops; queued callers time out.
func (e *accountEntity) run() {
	if err := e.recover(); err != nil {
		log.Printf("CRITICAL: account %s cannot recover from its event stream: %v", e.id, err)
		select {
		case e.failures <- entityFailure{accountID: e.id, err: err}:
		default:
			log.Printf("ERROR: supervision channel full, dropping failure report for account %s", e.id)
		}
		return
	}

	for cmd := range e.mailbox {
		e.handle(cmd)
	}
}

// recover folds the persisted stream into state, starting from the latest
// snapshot when one exists. An empty stream leaves the entity in the
// placeholder not-yet-opened state.
func (e *accountEntity) recover() error {
	account := domain.NewAccount(e.id)

	if e.snapshotStore != nil {
		snapshot, found, err := e.snapshotStore.GetLatestSnapshot(e.id)
		if err != nil {
			log.Printf("Warning: Error loading snapshot for account %s: %v. Attempting full event replay.", e.id, err)
		} else if found {
			restored, err := domain.ApplySnapshot(snapshot)
			if err != nil {
				log.Printf("ERROR: Failed to apply snapshot version %d for account %s: %v. Rebuilding from all events.", snapshot.Version, e.id, err)
			} else {
				account = restored
			}
		}
	}

	tail, err := e.eventStore.GetEventsAfterVersion(e.id, account.Version)
	if err != nil {
		return fmt.Errorf("failed to load events for account %s: %w", e.id, err)
	}
	if err := account.ApplyEvents(tail); err != nil {
		return err
	}

	e.state = account
	return nil
}

// handle processes exactly one command: decide the event, persist it, fold
// it, reply. The order is load-bearing — state is only mutated after the
// append was acknowledged, so a persistence failure leaves no trace and the
// caller's request simply times out.
func (e *accountEntity) handle(cmd Command) {
	switch c := cmd.(type) {
	case CreateAccountCommand:
		event, err := e.state.HandleOpen(c.Owner, c.Currency, c.InitialBalance)
		if err != nil {
			deliver(c.Reply, CreateAccountResult{Err: err})
			return
		}
		if err := e.persistAndApply(event); err != nil {
			return
		}
		deliver(c.Reply, CreateAccountResult{AccountID: e.id})

	case ChangeBalanceCommand:
		event, err := e.state.HandleChangeBalance(c.Delta)
		if err != nil {
			deliver(c.Reply, ChangeBalanceResult{Err: err})
			return
		}
		if err := e.persistAndApply(event); err != nil {
			return
		}
		deliver(c.Reply, ChangeBalanceResult{Account: e.state.Copy()})

	case GetAccountCommand:
		if !e.state.Opened() {
			deliver(c.Reply, GetAccountResult{Err: fmt.Errorf("%w: %s", domain.ErrAccountNotFound, e.id)})
			return
		}
		deliver(c.Reply, GetAccountResult{Account: e.state.Copy()})

	default:
		log.Printf("ERROR: account %s received unknown command %T", e.id, cmd)
	}
}

func (e *accountEntity) persistAndApply(event events.Event) error {
	if err := e.eventStore.SaveEvents(e.id, e.state.Version, []events.Event{event}); err != nil {
		log.Printf("ERROR: persisting event %T for account %s failed, command abandoned: %v", event, e.id, err)
		return err
	}
	if err := e.state.ApplyEvent(event); err != nil {
		// The event is durable but would not fold; in-memory state can no
		// longer be trusted beyond this point.
		log.Printf("CRITICAL: applying persisted event %T for account %s failed: %v", event, e.id, err)
		return err
	}
	e.saveSnapshotIfNeeded()
	return nil
}

func (e *accountEntity) saveSnapshotIfNeeded() {
	if e.snapshotStore == nil || e.snapshotEvery <= 0 {
		return
	}
	if e.state.Version%e.snapshotEvery != 0 || e.state.Version == 0 {
		return
	}

	snapshot, err := domain.CreateSnapshot(e.state)
	if err != nil {
		log.Printf("ERROR: Failed to create snapshot for account %s at version %d: %v", e.id, e.state.Version, err)
		return
	}
	if err := e.snapshotStore.SaveSnapshot(snapshot); err != nil {
		log.Printf("ERROR: Failed to save snapshot for account %s at version %d: %v", e.id, e.state.Version, err)
	}
}
