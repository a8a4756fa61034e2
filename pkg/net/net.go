package net

import (
	"log"
	"sync"
)

// Stack is one independent instance of the protocol stack core: the device
// list, the protocol list and the interrupt controller. Registration of
// devices, protocols and interrupt handlers must complete before Run; the
// registries are not synchronized against the service goroutine.
type Stack struct {
	deviceIndex uint
	devices     []*Device

	protoMu   sync.Mutex // guards the protocol queues
	protocols []*protocolEntry

	intr *intrController
}

// NewStack returns an initialized stack with no devices or protocols.
func NewStack() *Stack {
	s := &Stack{}
	s.intr = newIntrController(s.softirqHandler)
	log.Printf("[I] initialized")
	return s
}

// Run starts the interrupt service goroutine, then opens every registered
// device. A device whose driver fails to open is logged and left down; the
// remaining devices still come up.
func (s *Stack) Run() error {
	if err := s.intr.run(); err != nil {
		return err
	}

	log.Printf("[D] open all devices...")
	for _, dev := range s.devices {
		if err := s.Open(dev); err != nil {
			log.Printf("[E] open failure, dev=%s: %s", dev.Name(), err)
		}
	}
	log.Printf("[D] running...")
	return nil
}

// Shutdown closes every device, then stops the interrupt service and waits
// for it to terminate. Inbound frames still queued on a protocol are
// abandoned, not drained.
func (s *Stack) Shutdown() {
	log.Printf("[D] close all devices...")
	for _, dev := range s.devices {
		if err := s.Close(dev); err != nil {
			log.Printf("[E] close failure, dev=%s: %s", dev.Name(), err)
		}
	}
	s.intr.shutdown()
	log.Printf("[D] shutting down")
}
