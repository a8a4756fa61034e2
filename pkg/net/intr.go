package net

import (
	"fmt"
	"log"
	"sync"
)

// IRQNumber identifies a virtual interrupt line.
type IRQNumber uint

// IRQBase is the first interrupt number available to device drivers.
const IRQBase IRQNumber = 1

// IRQHandler is invoked on the interrupt service goroutine when its line is
// raised. dev is the device the handler was registered with, nil if none.
type IRQHandler func(irq IRQNumber, dev *Device)

type irqEntry struct {
	irq     IRQNumber
	handler IRQHandler
	shared  bool
	name    string
	dev     *Device
}

type intrState uint8

const (
	intrInitialized intrState = iota
	intrRunning
	intrStopped
)

type intrEventKind uint8

const (
	eventIRQ intrEventKind = iota
	eventSoftIRQ
	eventShutdown
)

// intrEvent is one delivery on the event bus. Shutdown and the soft
// interrupt are their own kinds instead of reserved line numbers.
type intrEvent struct {
	kind intrEventKind
	irq  IRQNumber
}

const intrBusSize = 128

// intrController simulates a hardware interrupt controller: a registry of
// virtual interrupt lines and a buffered event bus consumed by a single
// service goroutine. Every interrupt handler and every protocol handler
// runs on that goroutine, so the dispatch path itself needs no locking.
type intrController struct {
	mu    sync.Mutex
	state intrState
	irqs  map[IRQNumber][]*irqEntry

	events  chan intrEvent
	ready   chan struct{}
	done    chan struct{}
	softirq func()
}

func newIntrController(softirq func()) *intrController {
	return &intrController{
		irqs:    make(map[IRQNumber][]*irqEntry),
		events:  make(chan intrEvent, intrBusSize),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		softirq: softirq,
	}
}

// requestIRQ registers a handler on a line. A line that already has entries
// can only be taken when every existing entry and the new one are marked
// shared.
func (c *intrController) requestIRQ(irq IRQNumber, handler IRQHandler, shared bool, name string, dev *Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.irqs[irq] {
		if !entry.shared || !shared {
			return fmt.Errorf("%w: irq=%d, name=%s", ErrIRQConflict, irq, name)
		}
	}

	// head insertion, dispatch visits the newest registration first
	entry := &irqEntry{irq: irq, handler: handler, shared: shared, name: name, dev: dev}
	c.irqs[irq] = append([]*irqEntry{entry}, c.irqs[irq]...)
	log.Printf("[D] irq registered, irq=%d, name=%s", irq, name)
	return nil
}

// raiseIRQ delivers a virtual interrupt to the service goroutine. Fire and
// forget: the caller gets no acknowledgment that the handler ran or even
// started.
func (c *intrController) raiseIRQ(irq IRQNumber) error {
	return c.deliver(intrEvent{kind: eventIRQ, irq: irq})
}

func (c *intrController) raiseSoftIRQ() error {
	return c.deliver(intrEvent{kind: eventSoftIRQ})
}

func (c *intrController) deliver(ev intrEvent) error {
	c.mu.Lock()
	stopped := c.state == intrStopped
	c.mu.Unlock()
	if stopped {
		return fmt.Errorf("%w: service stopped", ErrIRQDelivery)
	}
	select {
	case c.events <- ev:
		return nil
	default:
		return fmt.Errorf("%w: event bus full", ErrIRQDelivery)
	}
}

// run spawns the service goroutine and blocks until it is about to wait on
// the bus, so an interrupt raised right after run returns cannot be lost.
func (c *intrController) run() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != intrInitialized {
		return fmt.Errorf("interrupt service already started")
	}
	go c.serviceLoop()
	<-c.ready
	c.state = intrRunning
	return nil
}

func (c *intrController) serviceLoop() {
	defer close(c.done)

	log.Printf("[D] intr: start...")
	close(c.ready)
	for ev := range c.events {
		switch ev.kind {
		case eventShutdown:
			log.Printf("[D] intr: terminated")
			return
		case eventSoftIRQ:
			c.softirq()
		case eventIRQ:
			c.mu.Lock()
			entries := c.irqs[ev.irq]
			c.mu.Unlock()
			for _, entry := range entries {
				log.Printf("[D] irq=%d, name=%s", entry.irq, entry.name)
				entry.handler(entry.irq, entry.dev)
			}
		}
	}
}

// shutdown delivers the shutdown event and waits for the service goroutine
// to exit. A controller that never ran is left untouched. No handler of any
// kind executes after shutdown returns; events still queued on the bus and
// frames still queued on protocols are abandoned.
func (c *intrController) shutdown() {
	c.mu.Lock()
	if c.state != intrRunning {
		c.mu.Unlock()
		return
	}
	c.state = intrStopped
	c.mu.Unlock()

	c.events <- intrEvent{kind: eventShutdown}
	<-c.done
}

// RequestIRQ registers an interrupt handler for a virtual interrupt line.
// Drivers call this at initialization, before Run.
func (s *Stack) RequestIRQ(irq IRQNumber, handler IRQHandler, shared bool, name string, dev *Device) error {
	return s.intr.requestIRQ(irq, handler, shared, name, dev)
}

// RaiseIRQ asynchronously delivers a virtual interrupt to the service
// goroutine.
func (s *Stack) RaiseIRQ(irq IRQNumber) error {
	return s.intr.raiseIRQ(irq)
}
