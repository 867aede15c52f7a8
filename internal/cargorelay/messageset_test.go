package cargorelay

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestEncodeMessageSet(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		messages := rapid.SliceOf(rapid.SliceOfN(rapid.Byte(), 0, 300)).Draw(t, "messages")

		data, err := EncodeMessageSet(messages)
		if err != nil {
			t.Fatal(err)
		}

		content := 0
		for _, m := range messages {
			content += encodedLength(len(m))
		}

		if want := encodedLength(content); len(data) != want {
			t.Fatalf("unexpected encoded length: got %d, want %d", len(data), want)
		}

		decoded, err := DecodeMessageSet(data)
		if err != nil {
			t.Fatal(err)
		}

		if len(decoded) != len(messages) {
			t.Fatalf("unexpected message count: got %d, want %d", len(decoded), len(messages))
		}

		for i := range messages {
			if !bytes.Equal(decoded[i], messages[i]) {
				t.Fatalf("message %d differs after decoding", i)
			}
		}
	})
}

func TestBatcher(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(16, 2048).Draw(t, "limit")
		messages := rapid.SliceOf(rapid.SliceOfN(rapid.Byte(), 0, 2048)).Draw(t, "messages")

		var (
			batches  []batch
			accepted [][]byte
		)

		b := &batcher{
			Limit: limit,
			Emit: func(_ context.Context, x batch) error {
				batches = append(batches, x)
				return nil
			},
		}

		now := time.Now()
		for i, m := range messages {
			err := b.Add(context.Background(), m, now.Add(time.Duration(i)*time.Second))
			if errors.Is(err, errMessageTooLarge) {
				if encodedLength(encodedLength(len(m))) <= limit {
					t.Fatalf("message of length %d rejected although it fits within %d", len(m), limit)
				}
				continue
			}
			if err != nil {
				t.Fatal(err)
			}
			accepted = append(accepted, m)
		}

		if err := b.Flush(context.Background()); err != nil {
			t.Fatal(err)
		}

		var emitted [][]byte
		for _, x := range batches {
			if len(x.Messages) == 0 {
				t.Fatal("empty batch emitted")
			}

			data, err := EncodeMessageSet(x.Messages)
			if err != nil {
				t.Fatal(err)
			}

			if len(data) > limit {
				t.Fatalf("batch of %d bytes exceeds limit of %d", len(data), limit)
			}

			emitted = append(emitted, x.Messages...)
		}

		if len(emitted) != len(accepted) {
			t.Fatalf("unexpected message count: got %d, want %d", len(emitted), len(accepted))
		}

		for i := range accepted {
			if !bytes.Equal(emitted[i], accepted[i]) {
				t.Fatalf("message %d was reordered or altered", i)
			}
		}
	})
}
