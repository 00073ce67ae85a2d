package core

import (
	"context"
	"errors"
)

var (
	// ErrInvalidOperation is returned when a request names an unknown action.
	ErrInvalidOperation = errors.New("queueworker: invalid operation")

	// ErrInvalidParameter is returned for malformed messages, queue references
	// or receive/send parameters.
	ErrInvalidParameter = errors.New("queueworker: invalid parameter")

	// ErrNoProcessorSelected is returned when the selector chain is exhausted
	// without producing a Processor.
	ErrNoProcessorSelected = errors.New("queueworker: no processor selected")

	// ErrProcessing marks a failure raised while a Processor ran.
	ErrProcessing = errors.New("queueworker: processing failed")

	// ErrNoHandler is returned when no handler matches a forwarded name.
	ErrNoHandler = errors.New("queueworker: no handler registered for name")

	// ErrQueueClosed is returned when operations are attempted on a closed queue.
	ErrQueueClosed = errors.New("queueworker: queue is closed")

	// ErrForeignMessage is returned when a queue is asked to delete a message
	// it did not deliver.
	ErrForeignMessage = errors.New("queueworker: message was not received from this queue")

	// ErrNoQueue is returned when a queue reference cannot be resolved.
	ErrNoQueue = errors.New("queueworker: queue not found")
)

// Error classes reported by Classify.
const (
	ClassInvalidOperation    = "invalid_operation"
	ClassInvalidParameter    = "invalid_parameter"
	ClassNoProcessorSelected = "no_processor_selected"
	ClassProcessing          = "processing_error"
	ClassCanceled            = "canceled"
)

// Classify maps an error returned by Dispatch to a short classification
// string suitable for request-style callers. Unknown errors are reported as
// processing errors, there is no success fallback.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidOperation):
		return ClassInvalidOperation
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrNoQueue):
		return ClassInvalidParameter
	case errors.Is(err, ErrNoProcessorSelected):
		return ClassNoProcessorSelected
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	default:
		return ClassProcessing
	}
}
