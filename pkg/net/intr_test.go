package net_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kura-karakaru/microps/pkg/net"
)

func TestRequestIRQConflict(t *testing.T) {
	irq := net.IRQBase + 10
	nop := func(net.IRQNumber, *net.Device) {}

	t.Run("exclusive then shared", func(t *testing.T) {
		s := net.NewStack()
		if err := s.RequestIRQ(irq, nop, false, "first", nil); err != nil {
			t.Fatal(err)
		}
		err := s.RequestIRQ(irq, nop, true, "second", nil)
		if !errors.Is(err, net.ErrIRQConflict) {
			t.Errorf("expected ErrIRQConflict, got %v", err)
		}
	})

	t.Run("shared then exclusive", func(t *testing.T) {
		s := net.NewStack()
		if err := s.RequestIRQ(irq, nop, true, "first", nil); err != nil {
			t.Fatal(err)
		}
		err := s.RequestIRQ(irq, nop, false, "second", nil)
		if !errors.Is(err, net.ErrIRQConflict) {
			t.Errorf("expected ErrIRQConflict, got %v", err)
		}
	})

	t.Run("shared then shared", func(t *testing.T) {
		s := net.NewStack()
		if err := s.RequestIRQ(irq, nop, true, "first", nil); err != nil {
			t.Fatal(err)
		}
		if err := s.RequestIRQ(irq, nop, true, "second", nil); err != nil {
			t.Errorf("two shared registrations must coexist, got %v", err)
		}
	})
}

func TestSharedIRQDispatchOrder(t *testing.T) {
	s := net.NewStack()
	irq := net.IRQBase + 20

	order := make(chan string, 2)
	handler := func(name string) net.IRQHandler {
		return func(net.IRQNumber, *net.Device) {
			order <- name
		}
	}

	if err := s.RequestIRQ(irq, handler("first"), true, "first", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestIRQ(irq, handler("second"), true, "second", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	if err := s.RaiseIRQ(irq); err != nil {
		t.Fatal(err)
	}

	// both handlers run, in reverse registration order
	want := []string{"second", "first"}
	for _, name := range want {
		select {
		case got := <-order:
			if got != name {
				t.Errorf("dispatch order: expected %s, got %s", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("handler %s did not run", name)
		}
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	s := net.NewStack()

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown before run must be a no-op")
	}
}

func TestNoHandlerAfterShutdown(t *testing.T) {
	s := net.NewStack()
	irq := net.IRQBase + 30

	var count int32
	fired := make(chan struct{}, 16)
	handler := func(net.IRQNumber, *net.Device) {
		atomic.AddInt32(&count, 1)
		fired <- struct{}{}
	}
	if err := s.RequestIRQ(irq, handler, false, "test", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	if err := s.RaiseIRQ(irq); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}

	s.Shutdown()

	before := atomic.LoadInt32(&count)
	if err := s.RaiseIRQ(irq); !errors.Is(err, net.ErrIRQDelivery) {
		t.Errorf("expected ErrIRQDelivery after shutdown, got %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if after := atomic.LoadInt32(&count); after != before {
		t.Errorf("handler ran after shutdown: %d -> %d", before, after)
	}
}

func TestRaiseIRQBusFull(t *testing.T) {
	// without a running service goroutine the bus eventually fills up and
	// delivery reports a failure instead of blocking
	s := net.NewStack()
	irq := net.IRQBase + 40
	if err := s.RequestIRQ(irq, func(net.IRQNumber, *net.Device) {}, false, "test", nil); err != nil {
		t.Fatal(err)
	}

	var failed error
	for i := 0; i < 1000; i++ {
		if err := s.RaiseIRQ(irq); err != nil {
			failed = err
			break
		}
	}
	if !errors.Is(failed, net.ErrIRQDelivery) {
		t.Errorf("expected ErrIRQDelivery once the bus is full, got %v", failed)
	}
}
