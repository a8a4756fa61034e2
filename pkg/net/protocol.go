package net

import (
	"fmt"
	"log"

	"github.com/kura-karakaru/microps/pkg/utils"
)

type ProtocolType uint16

const (
	ProtocolTypeIP   ProtocolType = 0x0800
	ProtocolTypeARP  ProtocolType = 0x0806
	ProtocolTypeIPv6 ProtocolType = 0x86dd
)

func (t ProtocolType) String() string {
	switch t {
	case ProtocolTypeIP:
		return "IPv4"
	case ProtocolTypeARP:
		return "ARP"
	case ProtocolTypeIPv6:
		return "IPv6"
	default:
		return "UNKNOWN"
	}
}

// ProtocolHandler consumes one demultiplexed inbound frame. It runs on the
// interrupt service goroutine and borrows data only for the duration of the
// call; anything kept beyond it must be copied. Failures never travel back
// to the frame's origin, the handler deals with them itself.
type ProtocolHandler func(data []byte, src *Device)

// ProtocolQueueEntry is one inbound frame waiting for the soft interrupt
// drain: an owned copy of the payload and the device it arrived on.
type ProtocolQueueEntry struct {
	Data []byte
	Dev  *Device
}

// protocolQueueLimit bounds each protocol's pending queue. Input drops the
// frame with an error once the limit is hit.
const protocolQueueLimit = 1024

type protocolEntry struct {
	typ     ProtocolType
	handler ProtocolHandler
	queue   Queue[*ProtocolQueueEntry]
}

// ProtocolRegister binds a handler to a protocol type. The type must not be
// registered already. Must complete before Run.
func (s *Stack) ProtocolRegister(typ ProtocolType, handler ProtocolHandler) error {
	for _, proto := range s.protocols {
		if proto.typ == typ {
			return fmt.Errorf("%w: type=%s", ErrProtocolDuplicate, typ)
		}
	}
	s.protocols = append([]*protocolEntry{{typ: typ, handler: handler}}, s.protocols...)
	log.Printf("[I] protocol registered, type=%s", typ)
	return nil
}

// Input queues an inbound frame for the matching protocol and raises the
// soft interrupt. Drivers call this from their interrupt handlers, once per
// received frame. A frame for an unregistered type is dropped silently;
// that is not an error. Only a full protocol queue makes the call fail, and
// then only this frame is lost.
func (s *Stack) Input(typ ProtocolType, data []byte, dev *Device) error {
	for _, proto := range s.protocols {
		if proto.typ != typ {
			continue
		}

		entry := &ProtocolQueueEntry{
			Data: make([]byte, len(data)),
			Dev:  dev,
		}
		copy(entry.Data, data)

		s.protoMu.Lock()
		if proto.queue.Len() >= protocolQueueLimit {
			s.protoMu.Unlock()
			return fmt.Errorf("%w: type=%s, dev=%s", ErrQueueFull, typ, dev.Name())
		}
		proto.queue.Push(entry)
		num := proto.queue.Len()
		s.protoMu.Unlock()

		log.Printf("[D] queue pushed (num:%d), dev=%s, type=%s, len=%d", num, dev.Name(), typ, len(data))
		utils.DebugDump(data)

		if err := s.intr.raiseSoftIRQ(); err != nil {
			// the entry stays queued and is picked up by the next drain
			log.Printf("[E] softirq raise failure: %s", err)
		}
		return nil
	}

	// unsupported protocol, drop silently
	return nil
}

// softirqHandler is invoked on the service goroutine once per delivered
// soft interrupt. Every protocol queue is drained until it is observed
// empty before moving on to the next protocol.
func (s *Stack) softirqHandler() {
	for _, proto := range s.protocols {
		for {
			s.protoMu.Lock()
			entry, ok := proto.queue.Pop()
			num := proto.queue.Len()
			s.protoMu.Unlock()
			if !ok {
				break
			}
			log.Printf("[D] queue popped (num:%d), dev=%s, type=%s, len=%d", num, entry.Dev.Name(), proto.typ, len(entry.Data))
			utils.DebugDump(entry.Data)
			proto.handler(entry.Data, entry.Dev)
		}
	}
}
