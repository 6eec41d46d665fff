// SPDX-License-Identifier: MIT

package songevent

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalid marks a payload that decoded but violates the event model.
var ErrInvalid = errors.New("invalid song event")

var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// Encoder turns an event into its wire payload.
type Encoder func(Event) ([]byte, error)

// Marshal encodes an event as flat JSON; unset optional fields are omitted.
func Marshal(e Event) ([]byte, error) {
	data, err := wire.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal song event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a wire payload.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := wire.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal song event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return e, nil
}
