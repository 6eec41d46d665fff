// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService = "service"
	FieldVersion = "version"
	FieldRunID   = "run_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Generator fields
	FieldListenerID = "listener_id"
	FieldEventKind  = "event_kind"
	FieldTimestamp  = "timestamp"
	FieldBatchSize  = "batch_size"
	FieldQueueDepth = "queue_depth"
	FieldLag        = "lag"
	FieldPlayers    = "players"
	FieldHorizon    = "horizon"
	FieldSeed       = "seed"

	// Sink fields
	FieldSink       = "sink"
	FieldStream     = "stream"
	FieldRoutingKey = "routing_key"
	FieldSize       = "size"
	FieldPayload    = "payload"

	// Config fields
	FieldPath   = "path"
	FieldSource = "source"
	FieldKey    = "key"
)
