package cargorelay

import (
	"context"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxCargoLength is the maximum length of serialized cargo.
	MaxCargoLength = 9437184

	// MaxMessageSetLength is the maximum length of the serialized message set
	// within a cargo, leaving room for the cargo's own envelope.
	MaxMessageSetLength = 8322048
)

// errMessageTooLarge indicates that a single message cannot fit within any
// message set.
var errMessageTooLarge = errors.New("message is too large to be included in cargo")

// EncodeMessageSet returns the DER encoding of a message set, which is a
// SEQUENCE OF OCTET STRING.
func EncodeMessageSet(messages [][]byte) ([]byte, error) {
	if messages == nil {
		messages = [][]byte{}
	}
	return asn1.Marshal(messages)
}

// DecodeMessageSet parses the DER encoding of a message set.
func DecodeMessageSet(data []byte) ([][]byte, error) {
	var messages [][]byte

	rest, err := asn1.Unmarshal(data, &messages)
	if err != nil {
		return nil, fmt.Errorf("malformed message set: %w", err)
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("malformed message set: %d trailing bytes", len(rest))
	}

	return messages, nil
}

// encodedLength returns the length of the DER encoding of a value with a
// single-byte tag and content of length n.
func encodedLength(n int) int {
	length := 2 + n

	if n >= 128 {
		for ; n > 0; n >>= 8 {
			length++
		}
	}

	return length
}

// batch is a set of messages that fit within a single cargo.
type batch struct {
	Messages  [][]byte
	ExpiresAt time.Time
}

// batcher groups messages into batches whose encoded message set does not
// exceed a length limit.
type batcher struct {
	Limit int
	Emit  func(context.Context, batch) error

	current       batch
	contentLength int
}

// Add adds a message to the current batch, emitting the current batch first
// if the message would not fit in it.
//
// The batch expires when the last of its messages expires.
func (b *batcher) Add(ctx context.Context, message []byte, expiresAt time.Time) error {
	item := encodedLength(len(message))

	if encodedLength(item) > b.Limit {
		return errMessageTooLarge
	}

	if len(b.current.Messages) > 0 && encodedLength(b.contentLength+item) > b.Limit {
		if err := b.Flush(ctx); err != nil {
			return err
		}
	}

	b.current.Messages = append(b.current.Messages, message)
	b.contentLength += item

	if expiresAt.After(b.current.ExpiresAt) {
		b.current.ExpiresAt = expiresAt
	}

	return nil
}

// Flush emits the current batch, if it contains any messages.
func (b *batcher) Flush(ctx context.Context) error {
	if len(b.current.Messages) == 0 {
		return nil
	}

	x := b.current
	b.current = batch{}
	b.contentLength = 0

	return b.Emit(ctx, x)
}
