package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bank-accounts/domain"
	"bank-accounts/events"
	"bank-accounts/shared"
	"bank-accounts/store"
)

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// failingEventStore wraps a working store and fails appends on demand, to
// exercise the abandoned-command path.
type failingEventStore struct {
	store.EventStore
	mu   sync.Mutex
	fail bool
}

func (f *failingEventStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *failingEventStore) SaveEvents(streamID string, expectedVersion int, eventsToSave []events.Event) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk on fire")
	}
	return f.EventStore.SaveEvents(streamID, expectedVersion, eventsToSave)
}

func startEntity(t *testing.T, id string, es store.EventStore) (*accountEntity, chan entityFailure) {
	t.Helper()
	failures := make(chan entityFailure, 1)
	entity := newAccountEntity(id, es, store.NewInMemorySnapshotStore(), 16, 100, failures)
	go entity.run()
	t.Cleanup(func() { close(entity.mailbox) })
	return entity, failures
}

func TestEntity_DuplicateCreateIsProtocolError(t *testing.T) {
	es := store.NewInMemoryEventStore()
	entity, _ := startEntity(t, "acc-dup", es)

	open := func() CreateAccountResult {
		reply := make(chan CreateAccountResult, 1)
		entity.mailbox <- CreateAccountCommand{
			AccountID:      "acc-dup",
			Owner:          "alice",
			Currency:       shared.USD,
			InitialBalance: mustDec("10"),
			Reply:          reply,
		}
		result, err := await(reply, time.Second)
		if err != nil {
			t.Fatalf("await failed: %v", err)
		}
		return result
	}

	if result := open(); result.Err != nil {
		t.Fatalf("first create failed: %v", result.Err)
	}
	result := open()
	if !errors.Is(result.Err, domain.ErrAccountExists) {
		t.Errorf("expected ErrAccountExists, got %v", result.Err)
	}

	// Only the first create persisted anything.
	stream, _ := es.GetEvents("acc-dup")
	if len(stream) != 1 {
		t.Errorf("expected 1 persisted event, got %d", len(stream))
	}
}

func TestEntity_PersistenceFailureLeavesNoTrace(t *testing.T) {
	failing := &failingEventStore{EventStore: store.NewInMemoryEventStore()}
	entity, _ := startEntity(t, "acc-fail", failing)

	createReply := make(chan CreateAccountResult, 1)
	entity.mailbox <- CreateAccountCommand{
		AccountID: "acc-fail", Owner: "alice", Currency: shared.USD,
		InitialBalance: mustDec("100"), Reply: createReply,
	}
	if _, err := await(createReply, time.Second); err != nil {
		t.Fatalf("create await failed: %v", err)
	}

	failing.setFail(true)
	changeReply := make(chan ChangeBalanceResult, 1)
	entity.mailbox <- ChangeBalanceCommand{AccountID: "acc-fail", Delta: mustDec("-10"), Reply: changeReply}

	// No reply at all: the caller's request surfaces as a timeout.
	if _, err := await(changeReply, 100*time.Millisecond); !errors.Is(err, ErrReplyTimeout) {
		t.Fatalf("expected ErrReplyTimeout, got %v", err)
	}

	// In-memory state is untouched and the entity keeps serving.
	failing.setFail(false)
	getReply := make(chan GetAccountResult, 1)
	entity.mailbox <- GetAccountCommand{AccountID: "acc-fail", Reply: getReply}
	result, err := await(getReply, time.Second)
	if err != nil {
		t.Fatalf("get await failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("get failed: %v", result.Err)
	}
	if !result.Account.Balance.Equal(mustDec("100")) {
		t.Errorf("expected balance 100 after abandoned command, got %s", result.Account.Balance)
	}
	if result.Account.Version != 1 {
		t.Errorf("expected version 1 after abandoned command, got %d", result.Account.Version)
	}
}

func TestEntity_GetBeforeOpen(t *testing.T) {
	entity, _ := startEntity(t, "acc-empty", store.NewInMemoryEventStore())

	reply := make(chan GetAccountResult, 1)
	entity.mailbox <- GetAccountCommand{AccountID: "acc-empty", Reply: reply}
	result, err := await(reply, time.Second)
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if !errors.Is(result.Err, domain.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", result.Err)
	}
}

func TestEntity_CorruptStreamIsFatal(t *testing.T) {
	es := store.NewInMemoryEventStore()
	// A BalanceChanged with no preceding AccountOpened cannot be folded.
	es.SetStream("acc-corrupt", []events.Event{
		events.BalanceChangedEvent{
			BaseEvent: events.NewBaseEvent("acc-corrupt", 1, events.BalanceChangedType),
			Delta:     mustDec("10"),
		},
	})

	failures := make(chan entityFailure, 1)
	entity := newAccountEntity("acc-corrupt", es, nil, 16, 100, failures)
	go entity.run()

	select {
	case failure := <-failures:
		if failure.accountID != "acc-corrupt" {
			t.Errorf("failure for wrong account: %s", failure.accountID)
		}
		if failure.err == nil {
			t.Error("expected a recovery error")
		}
	case <-time.After(time.Second):
		t.Fatal("expected an entity failure report")
	}

	// The dead entity never replies; queued commands surface as timeouts.
	reply := make(chan GetAccountResult, 1)
	entity.mailbox <- GetAccountCommand{AccountID: "acc-corrupt", Reply: reply}
	if _, err := await(reply, 100*time.Millisecond); !errors.Is(err, ErrReplyTimeout) {
		t.Errorf("expected ErrReplyTimeout from dead entity, got %v", err)
	}
}

func TestEntity_SnapshotRecovery(t *testing.T) {
	es := store.NewInMemoryEventStore()
	ss := store.NewInMemorySnapshotStore()
	failures := make(chan entityFailure, 1)

	// Snapshot every 2 events to force snapshot-based recovery quickly.
	entity := newAccountEntity("acc-snap", es, ss, 16, 2, failures)
	go entity.run()

	createReply := make(chan CreateAccountResult, 1)
	entity.mailbox <- CreateAccountCommand{
		AccountID: "acc-snap", Owner: "alice", Currency: shared.USD,
		InitialBalance: mustDec("100"), Reply: createReply,
	}
	if _, err := await(createReply, time.Second); err != nil {
		t.Fatalf("create await failed: %v", err)
	}
	for _, delta := range []string{"-10", "-20", "-30"} {
		reply := make(chan ChangeBalanceResult, 1)
		entity.mailbox <- ChangeBalanceCommand{AccountID: "acc-snap", Delta: mustDec(delta), Reply: reply}
		if _, err := await(reply, time.Second); err != nil {
			t.Fatalf("change await failed: %v", err)
		}
	}
	close(entity.mailbox)

	if _, found, _ := ss.GetLatestSnapshot("acc-snap"); !found {
		t.Fatal("expected a snapshot to have been saved")
	}

	// A fresh entity recovers from snapshot plus tail to the same state.
	revived := newAccountEntity("acc-snap", es, ss, 16, 2, failures)
	go revived.run()
	defer close(revived.mailbox)

	getReply := make(chan GetAccountResult, 1)
	revived.mailbox <- GetAccountCommand{AccountID: "acc-snap", Reply: getReply}
	result, err := await(getReply, time.Second)
	if err != nil {
		t.Fatalf("get await failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("get failed: %v", result.Err)
	}
	if !result.Account.Balance.Equal(mustDec("40")) {
		t.Errorf("expected recovered balance 40, got %s", result.Account.Balance)
	}
	if result.Account.Version != 4 {
		t.Errorf("expected recovered version 4, got %d", result.Account.Version)
	}
}
