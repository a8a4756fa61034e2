package net_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/kura-karakaru/microps/pkg/net"
)

type received struct {
	data []byte
	dev  *net.Device
}

func recordHandler(ch chan received) net.ProtocolHandler {
	return func(data []byte, src *net.Device) {
		ch <- received{data: append([]byte(nil), data...), dev: src}
	}
}

func TestProtocolRegisterDuplicate(t *testing.T) {
	s := net.NewStack()
	dev, _ := newTestDevice(s, 1500)

	first := make(chan received, 8)
	second := make(chan received, 8)

	if err := s.ProtocolRegister(net.ProtocolTypeIP, recordHandler(first)); err != nil {
		t.Fatal(err)
	}
	err := s.ProtocolRegister(net.ProtocolTypeIP, recordHandler(second))
	if !errors.Is(err, net.ErrProtocolDuplicate) {
		t.Fatalf("expected ErrProtocolDuplicate, got %v", err)
	}

	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	payload := []byte{0x01, 0x02, 0x03}
	if err := s.Input(net.ProtocolTypeIP, payload, dev); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-first:
		if !bytes.Equal(got.data, payload) {
			t.Errorf("data mismatch: %v", got.data)
		}
	case <-time.After(time.Second):
		t.Fatal("first handler did not receive the frame")
	}
	select {
	case <-second:
		t.Error("rejected handler must not receive frames")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInputDelivery(t *testing.T) {
	s := net.NewStack()
	dev, _ := newTestDevice(s, 1500)

	ch := make(chan received, 8)
	if err := s.ProtocolRegister(net.ProtocolTypeIP, recordHandler(ch)); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	payload := []byte{0x45, 0x00, 0x00, 0x1c, 0xca, 0xfe}
	if err := s.Input(net.ProtocolTypeIP, payload, dev); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if !bytes.Equal(got.data, payload) {
			t.Errorf("data mismatch: expected %v, got %v", payload, got.data)
		}
		if got.dev != dev {
			t.Errorf("source device mismatch: %v", got.dev)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not receive the frame")
	}

	// exactly once
	select {
	case <-ch:
		t.Error("frame delivered more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInputUnknownType(t *testing.T) {
	s := net.NewStack()
	dev, _ := newTestDevice(s, 1500)

	ch := make(chan received, 8)
	if err := s.ProtocolRegister(net.ProtocolTypeIP, recordHandler(ch)); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	// unregistered type: success, no side effects
	if err := s.Input(net.ProtocolTypeIPv6, []byte{0x60, 0x00}, dev); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
		t.Error("no handler should run for an unregistered type")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStackInstancesAreIndependent(t *testing.T) {
	s1 := net.NewStack()
	s2 := net.NewStack()
	dev1, _ := newTestDevice(s1, 1500)

	ch1 := make(chan received, 8)
	ch2 := make(chan received, 8)
	if err := s1.ProtocolRegister(net.ProtocolTypeIP, recordHandler(ch1)); err != nil {
		t.Fatal(err)
	}
	if err := s2.ProtocolRegister(net.ProtocolTypeIP, recordHandler(ch2)); err != nil {
		t.Fatal(err)
	}

	if err := s1.Run(); err != nil {
		t.Fatal(err)
	}
	defer s1.Shutdown()
	if err := s2.Run(); err != nil {
		t.Fatal(err)
	}
	defer s2.Shutdown()

	if err := s1.Input(net.ProtocolTypeIP, []byte{0x01}, dev1); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("handler on the first stack did not receive the frame")
	}
	select {
	case <-ch2:
		t.Error("frame leaked into another stack instance")
	case <-time.After(100 * time.Millisecond):
	}
}
