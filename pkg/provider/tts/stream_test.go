package tts_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/parley/pkg/provider/tts"
)

func TestStream_DeliversChunksThenCompletes(t *testing.T) {
	stream := tts.NewStream(4)

	go func() {
		stream.Send(context.Background(), []byte{1, 2})
		stream.Send(context.Background(), []byte{3, 4})
		stream.Close(nil)
	}()

	var got []byte
	for chunk := range stream.Chunks() {
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("received %v, want [1 2 3 4]", got)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestStream_CloseRecordsError(t *testing.T) {
	stream := tts.NewStream(1)
	boom := errors.New("transfer broke")

	stream.Close(boom)

	if _, ok := <-stream.Chunks(); ok {
		t.Fatal("Chunks() should be closed")
	}
	if !errors.Is(stream.Err(), boom) {
		t.Errorf("Err() = %v, want %v", stream.Err(), boom)
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	stream := tts.NewStream(1)
	first := errors.New("first")

	stream.Close(first)
	stream.Close(errors.New("second"))

	if !errors.Is(stream.Err(), first) {
		t.Errorf("Err() = %v, want the first close error", stream.Err())
	}
}

func TestStream_SendHonorsCanceledContext(t *testing.T) {
	stream := tts.NewStream(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if stream.Send(ctx, []byte{1}) {
		t.Error("Send() with canceled context and no receiver should return false")
	}
}
