package test

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/testing/protocmp"
)

// Expect compares two values and fails the test if they are different.
func Expect[T any](
	t FailerT,
	failMessage string,
	got, want T,
	transforms ...func(T) T,
) {
	t.Helper()

	for _, fn := range transforms {
		got = fn(got)
		want = fn(want)
	}

	if diff := cmp.Diff(
		want,
		got,
		protocmp.Transform(),
		cmpopts.EquateEmpty(),
		cmpopts.EquateErrors(),
	); diff != "" {
		t.Log(failMessage)
		t.Fatal(diff)
	}
}

// ExpectChannelToReceive waits until a value is received from a channel and
// then compares it to the expected value.
func ExpectChannelToReceive[T any](
	t FailerT,
	ch <-chan T,
	want T,
	transforms ...func(T) T,
) {
	t.Helper()

	select {
	case <-time.After(receiveTimeout):
		t.Fatalf("no value received on channel within %s", receiveTimeout)
	case got, ok := <-ch:
		if ok {
			Expect(
				t,
				"channel received an unexpected value",
				got,
				want,
				transforms...,
			)
		} else {
			t.Error("channel closed while expecting to receive a value")
		}
	}
}

// ExpectChannelToBlockForDuration expects reading from the channel to block
// until the given duration elapses.
func ExpectChannelToBlockForDuration[T any](
	t FailerT,
	d time.Duration,
	ch <-chan T,
) {
	t.Helper()

	select {
	case <-time.After(d):
		// success! duration elapsed without receiving a value
	case got, ok := <-ch:
		if ok {
			t.Fatalf("channel received %v while expecting channel to block", got)
		} else {
			t.Error("channel closed while expecting channel to block")
		}
	}
}

const receiveTimeout = 5 * time.Second
