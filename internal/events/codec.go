package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when decoding an envelope whose type is not
	// part of the catalog.
	ErrUnknownKind = errors.New("unknown event type")
	// ErrMalformed is returned when an envelope or its payload cannot be
	// decoded.
	ErrMalformed = errors.New("malformed event")
)

// Heartbeat is the SSE comment written on idle streams.
var Heartbeat = []byte(": ping\n\n")

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

var payloadFactories = map[Kind]func(json.RawMessage) (Payload, error){
	KindConnected:         decodeAs[Connected],
	KindSaleNew:           decodeAs[SaleNew],
	KindSaleUpdate:        decodeAs[SaleUpdate],
	KindReservationNew:    decodeAs[ReservationNew],
	KindReservationUpdate: decodeAs[ReservationUpdate],
	KindRestaurantStatus:  decodeAs[RestaurantStatus],
	KindHoursUpdated:      decodeAs[HoursUpdated],
	KindOrderNew:          decodeAs[OrderNew],
	KindOrderStatus:       decodeAs[OrderStatus],
	KindMenuAvailability:  decodeAs[MenuAvailability],
	KindAnnouncement:      decodeAs[Announcement],
	KindNotification:      decodeAs[Notification],
}

// Known reports whether k is part of the catalog.
func (k Kind) Known() bool {
	_, ok := payloadFactories[k]
	return ok
}

// Encode renders e as the JSON envelope {"type":...,"data":...}.
func Encode(e Event) ([]byte, error) {
	if !e.Kind.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.Data != nil && e.Data.Kind() != e.Kind {
		return nil, fmt.Errorf("%w: payload of %s carried as %s", ErrMalformed, e.Data.Kind(), e.Kind)
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", e.Kind, err)
	}
	return json.Marshal(envelope{Type: e.Kind, Data: data})
}

// Decode parses a JSON envelope into a typed Event.
func Decode(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	decode, ok := payloadFactories[env.Type]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	p, err := decode(env.Data)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return Event{Kind: env.Type, Data: p}, nil
}

// Frame wraps an encoded envelope as a single SSE data frame.
func Frame(encoded []byte) []byte {
	out := make([]byte, 0, len(encoded)+8)
	out = append(out, "data: "...)
	out = append(out, encoded...)
	return append(out, '\n', '\n')
}

// MarshalJSON implements json.Marshaler using the wire envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	return Encode(e)
}

// UnmarshalJSON implements json.Unmarshaler using the wire envelope.
func (e *Event) UnmarshalJSON(b []byte) error {
	ev, err := Decode(b)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
