package events

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an event to JSON for durable storage. The concrete type
// is recoverable through the event's type tag, see Decode.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %T (%s): %w", event, event.GetBase().EventID, err)
	}
	return payload, nil
}

// Decode reconstructs the concrete event from its type tag and JSON payload.
// An unknown type tag means the stream was written by newer code or is
// corrupt; either way the caller cannot safely fold it.
func Decode(eventType EventType, payload []byte) (Event, error) {
	switch eventType {
	case AccountOpenedType:
		var e AccountOpenedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", eventType, err)
		}
		return e, nil
	case BalanceChangedType:
		var e BalanceChangedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", eventType, err)
		}
		return e, nil
	case AccountRegisteredType:
		var e AccountRegisteredEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", eventType, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("decode: unknown event type %q", eventType)
	}
}
