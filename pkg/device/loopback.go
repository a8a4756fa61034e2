package device

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/kura-karakaru/microps/pkg/net"
	"github.com/kura-karakaru/microps/pkg/utils"
)

const (
	loopbackMTU        = math.MaxUint16 /* maximum size of IP datagram */
	loopbackQueueLimit = 16

	LoopbackIRQ = net.IRQBase + 1
)

type loopbackQueueEntry struct {
	typ  net.ProtocolType
	data []byte
}

// Loopback bounces every transmitted frame back into the stack. Transmit
// pushes the frame onto the driver's private queue and raises the device
// interrupt; the interrupt handler drains the queue into Stack.Input, one
// call per frame.
type Loopback struct {
	net.NopOpenCloser
	stack *net.Stack
	irq   net.IRQNumber

	mu    sync.Mutex // guards queue, shared with the service goroutine
	queue net.Queue[*loopbackQueueEntry]
}

// LoopbackInit registers a loopback device and its interrupt handler on s.
func LoopbackInit(s *net.Stack) (*net.Device, error) {
	lo := &Loopback{stack: s, irq: LoopbackIRQ}
	dev := &net.Device{
		Type:   net.DeviceTypeLoopback,
		MTU:    loopbackMTU,
		Flags:  net.DeviceFlagLoopback,
		Driver: lo,
	}
	s.DeviceRegister(dev)
	if err := s.RequestIRQ(lo.irq, lo.isr, true, dev.Name(), dev); err != nil {
		return nil, err
	}
	log.Printf("[I] initialized, dev=%s", dev.Name())
	return dev, nil
}

func (lo *Loopback) Transmit(dev *net.Device, typ net.ProtocolType, data []byte, dst net.HardwareAddr) error {
	entry := &loopbackQueueEntry{
		typ:  typ,
		data: make([]byte, len(data)),
	}
	copy(entry.data, data)

	lo.mu.Lock()
	if lo.queue.Len() >= loopbackQueueLimit {
		lo.mu.Unlock()
		return fmt.Errorf("%w: dev=%s", net.ErrQueueFull, dev.Name())
	}
	lo.queue.Push(entry)
	num := lo.queue.Len()
	lo.mu.Unlock()

	log.Printf("[D] queue pushed (num:%d), dev=%s, type=%s, len=%d", num, dev.Name(), typ, len(data))
	utils.DebugDump(data)
	if err := lo.stack.RaiseIRQ(lo.irq); err != nil {
		log.Printf("[E] irq raise failure, dev=%s: %s", dev.Name(), err)
	}
	return nil
}

// isr runs on the interrupt service goroutine and pops entries until the
// queue is observed empty. The lock covers the queue mutation only; the
// dump and the input call happen outside it.
func (lo *Loopback) isr(irq net.IRQNumber, dev *net.Device) {
	for {
		lo.mu.Lock()
		entry, ok := lo.queue.Pop()
		num := lo.queue.Len()
		lo.mu.Unlock()
		if !ok {
			break
		}
		log.Printf("[D] queue popped (num:%d), dev=%s, type=%s, len=%d", num, dev.Name(), entry.typ, len(entry.data))
		utils.DebugDump(entry.data)
		if err := lo.stack.Input(entry.typ, entry.data, dev); err != nil {
			log.Printf("[E] input failure, dev=%s: %s", dev.Name(), err)
		}
	}
}
