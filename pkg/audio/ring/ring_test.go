package ring_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio/ring"
)

func TestTryWriteTryRead_RoundTrip(t *testing.T) {
	t.Parallel()

	b := ring.New(16)
	in := []byte{1, 2, 3, 4, 5}
	if n := b.TryWrite(in); n != len(in) {
		t.Fatalf("TryWrite = %d, want %d", n, len(in))
	}

	out := make([]byte, 8)
	n := b.TryRead(out)
	if n != len(in) {
		t.Fatalf("TryRead = %d, want %d", n, len(in))
	}
	if !bytes.Equal(out[:n], in) {
		t.Errorf("read %v, want %v", out[:n], in)
	}
}

func TestTryWrite_DiscardsWhenFull(t *testing.T) {
	t.Parallel()

	b := ring.New(4)
	if n := b.TryWrite([]byte{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Fatalf("TryWrite into cap-4 ring = %d, want 4", n)
	}
	if n := b.TryWrite([]byte{9}); n != 0 {
		t.Fatalf("TryWrite into full ring = %d, want 0", n)
	}

	out := make([]byte, 4)
	b.TryRead(out)
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Errorf("read %v, want first four writes", out)
	}
}

func TestWrapAround_PreservesOrder(t *testing.T) {
	t.Parallel()

	b := ring.New(8)
	b.TryWrite([]byte{1, 2, 3, 4, 5, 6})
	out := make([]byte, 4)
	b.TryRead(out)

	// writePos is now past the midpoint; this write wraps.
	if n := b.TryWrite([]byte{7, 8, 9, 10, 11, 12}); n != 6 {
		t.Fatalf("wrapping TryWrite = %d, want 6", n)
	}

	got := make([]byte, 8)
	n := b.TryRead(got)
	want := []byte{5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(got[:n], want) {
		t.Errorf("read %v, want %v", got[:n], want)
	}
}

func TestWrite_BlocksUntilSpace(t *testing.T) {
	t.Parallel()

	b := ring.New(4)
	b.TryWrite([]byte{1, 2, 3, 4})

	done := make(chan int)
	go func() {
		done <- b.Write([]byte{5, 6})
	}()

	select {
	case <-done:
		t.Fatal("Write returned while ring was full")
	case <-time.After(20 * time.Millisecond):
	}

	out := make([]byte, 2)
	b.TryRead(out)

	select {
	case n := <-done:
		if n != 2 {
			t.Fatalf("Write = %d, want 2", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not unblock after space freed")
	}
}

func TestRead_BlocksUntilFilled(t *testing.T) {
	t.Parallel()

	b := ring.New(16)
	b.TryWrite([]byte{1, 2})

	done := make(chan []byte)
	go func() {
		buf := make([]byte, 4)
		b.Read(buf)
		done <- buf
	}()

	select {
	case <-done:
		t.Fatal("Read returned before enough bytes were buffered")
	case <-time.After(20 * time.Millisecond):
	}

	b.TryWrite([]byte{3, 4})

	select {
	case got := <-done:
		if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
			t.Errorf("Read got %v, want [1 2 3 4]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after bytes arrived")
	}
}

func TestRead_ShortOnClose(t *testing.T) {
	t.Parallel()

	b := ring.New(16)
	b.TryWrite([]byte{1, 2, 3})

	done := make(chan int)
	go func() {
		buf := make([]byte, 8)
		done <- b.Read(buf)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case n := <-done:
		if n != 3 {
			t.Fatalf("Read after close = %d, want 3", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock on Close")
	}
}

func TestWaitEmpty_UnblocksOnDrain(t *testing.T) {
	t.Parallel()

	b := ring.New(8)
	b.TryWrite([]byte{1, 2, 3})

	done := make(chan struct{})
	go func() {
		b.WaitEmpty()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitEmpty returned while bytes were buffered")
	case <-time.After(20 * time.Millisecond):
	}

	out := make([]byte, 3)
	b.TryRead(out)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEmpty did not return after drain")
	}
}

func TestClose_UnblocksWriter(t *testing.T) {
	t.Parallel()

	b := ring.New(2)
	b.TryWrite([]byte{1, 2})

	done := make(chan int)
	go func() {
		done <- b.Write([]byte{3, 4, 5})
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("Write after close = %d, want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not unblock on Close")
	}
}

func TestReset_DiscardsBufferedBytes(t *testing.T) {
	t.Parallel()

	b := ring.New(8)
	b.TryWrite([]byte{1, 2, 3, 4})
	b.Reset()

	if got := b.Len(); got != 0 {
		t.Fatalf("Len after Reset = %d, want 0", got)
	}
	out := make([]byte, 4)
	if n := b.TryRead(out); n != 0 {
		t.Fatalf("TryRead after Reset = %d, want 0", n)
	}
}
