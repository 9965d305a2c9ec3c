package store

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"bank-accounts/events"
)

var (
	ErrVersionConflict = errors.New("version conflict: stream head does not match expected version")
	ErrNotFound        = errors.New("stream not found")
)

// EventStore is the append-only, per-stream ordered log. Each account entity
// is the only writer of its own stream, so the expected-version check is a
// safety net against programming errors rather than a concurrency mechanism;
// the registry stream is likewise written only from the registry loop.
type EventStore interface {
	// SaveEvents appends events to a stream after verifying the stream head
	// is at expectedVersion. The write must be durable before it returns nil.
	SaveEvents(streamID string, expectedVersion int, eventsToSave []events.Event) error

	// GetEvents returns the full stream in log order, oldest first.
	GetEvents(streamID string) ([]events.Event, error)

	// GetEventsAfterVersion returns the stream tail strictly after version.
	GetEventsAfterVersion(streamID string, version int) ([]events.Event, error)
}

type InMemoryEventStore struct {
	sync.RWMutex
	streams map[string][]events.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		streams: make(map[string][]events.Event),
	}
}

func (s *InMemoryEventStore) SaveEvents(streamID string, expectedVersion int, newEvents []events.Event) error {
	s.Lock()
	defer s.Unlock()

	if len(newEvents) == 0 {
		log.Printf("Warning: SaveEvents called with zero events for stream %s", streamID)
		return nil
	}

	stream, streamExists := s.streams[streamID]
	currentVersion := 0
	if streamExists && len(stream) > 0 {
		currentVersion = stream[len(stream)-1].GetBase().Version
	}

	if currentVersion != expectedVersion {
		return fmt.Errorf("%w: expected version %d, but current version is %d for stream %s",
			ErrVersionConflict, expectedVersion, currentVersion, streamID)
	}

	if err := validateSequence(streamID, expectedVersion, newEvents); err != nil {
		return err
	}

	if !streamExists {
		s.streams[streamID] = make([]events.Event, 0, len(newEvents))
	}
	s.streams[streamID] = append(s.streams[streamID], newEvents...)

	return nil
}

// validateSequence checks that appended events continue the stream without
// gaps and actually belong to the stream they are written to.
func validateSequence(streamID string, expectedVersion int, newEvents []events.Event) error {
	nextVersion := expectedVersion
	for _, event := range newEvents {
		base := event.GetBase()
		nextVersion++
		if base.Version != nextVersion {
			return fmt.Errorf("event sequence error for stream %s: expected version %d for event %T (%s), but got %d",
				streamID, nextVersion, event, base.EventID, base.Version)
		}
		if base.AggregateID != streamID {
			return fmt.Errorf("event stream ID mismatch: stream is for %s, but event %T (%s) has ID %s",
				streamID, event, base.EventID, base.AggregateID)
		}
	}
	return nil
}

func (s *InMemoryEventStore) GetEvents(streamID string) ([]events.Event, error) {
	s.RLock()
	defer s.RUnlock()

	streamData, ok := s.streams[streamID]
	if !ok {
		return []events.Event{}, nil
	}

	copiedStream := make([]events.Event, len(streamData))
	copy(copiedStream, streamData)
	return copiedStream, nil
}

func (s *InMemoryEventStore) GetEventsAfterVersion(streamID string, version int) ([]events.Event, error) {
	s.RLock()
	defer s.RUnlock()

	streamData, ok := s.streams[streamID]
	if !ok {
		return []events.Event{}, nil
	}

	startIndex := -1
	for i, event := range streamData {
		if event.GetBase().Version > version {
			startIndex = i
			break
		}
	}

	if startIndex == -1 {
		return []events.Event{}, nil
	}

	result := make([]events.Event, len(streamData)-startIndex)
	copy(result, streamData[startIndex:])
	return result, nil
}

// --- Test Helpers ---

// SetStream forcefully replaces the event stream for a stream ID.
// WARNING: Use ONLY in tests to simulate specific scenarios, e.g. a corrupt
// stream that must make entity recovery fail.
func (s *InMemoryEventStore) SetStream(streamID string, stream []events.Event) {
	s.Lock()
	defer s.Unlock()
	if stream == nil {
		delete(s.streams, streamID)
	} else {
		streamCopy := make([]events.Event, len(stream))
		copy(streamCopy, stream)
		s.streams[streamID] = streamCopy
	}
}
