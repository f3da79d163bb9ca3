package deliver

import (
	"errors"
	"fmt"
)

// MessageAttachmentFetchError reports a stored message that could not be
// fetched for embedding.
type MessageAttachmentFetchError struct {
	Ref string
	Err error
}

func (e *MessageAttachmentFetchError) Error() string {
	return fmt.Sprintf("fetch attached message %s: %v", e.Ref, e.Err)
}

func (e *MessageAttachmentFetchError) Unwrap() error { return e.Err }

// CryptoError reports a signing or encryption failure.
type CryptoError struct {
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("pgp: %v", e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// TransportError reports a failure to open the transport or submit the
// message.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("deliver: %v", e.Err)
	}
	return fmt.Sprintf("deliver via %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// OutboxAppendError reports a failed outbox copy. It never fails a send.
type OutboxAppendError struct {
	Mailbox string
	Err     error
}

func (e *OutboxAppendError) Error() string {
	return fmt.Sprintf("append to outbox %s: %v", e.Mailbox, e.Err)
}

func (e *OutboxAppendError) Unwrap() error { return e.Err }

// IsMessageAttachmentFetchError checks if an error is a MessageAttachmentFetchError.
func IsMessageAttachmentFetchError(err error) bool {
	var e *MessageAttachmentFetchError
	return errors.As(err, &e)
}

// IsCryptoError checks if an error is a CryptoError.
func IsCryptoError(err error) bool {
	var e *CryptoError
	return errors.As(err, &e)
}

// IsTransportError checks if an error is a TransportError.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsOutboxAppendError checks if an error is an OutboxAppendError.
func IsOutboxAppendError(err error) bool {
	var e *OutboxAppendError
	return errors.As(err, &e)
}
