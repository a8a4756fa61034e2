package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/kura-karakaru/microps/pkg/device/raw"
	"github.com/kura-karakaru/microps/pkg/net"
	"github.com/kura-karakaru/microps/pkg/utils"
)

const (
	EtherAddrLen    = 6
	EtherHeaderSize = 14

	EtherFrameSizeMin = 60   /* without FCS */
	EtherFrameSizeMax = 1514 /* without FCS */

	EtherPayloadSizeMax = EtherFrameSizeMax - EtherHeaderSize

	EthernetIRQ = net.IRQBase + 2

	ethernetQueueLimit = 64
)

var (
	EtherAddrAny       = EtherAddr{}
	EtherAddrBroadcast = EtherAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

// EtherAddr implements net.HardwareAddr. It is stored in network byte order.
type EtherAddr [EtherAddrLen]byte

func (a EtherAddr) Addr() []byte {
	return a[:]
}

func (a EtherAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// EtherHeader is the header of an Ethernet frame.
type EtherHeader struct {
	Dst  EtherAddr
	Src  EtherAddr
	Type net.ProtocolType
}

func (h EtherHeader) String() string {
	return fmt.Sprintf("dst=%s, src=%s, type=%s", h.Dst, h.Src, h.Type)
}

func data2header(data []byte) (EtherHeader, []byte, error) {
	var hdr EtherHeader
	r := bytes.NewReader(data[:EtherHeaderSize])
	err := binary.Read(r, binary.BigEndian, &hdr)
	return hdr, data[EtherHeaderSize:], err
}

func header2data(hdr EtherHeader, payload []byte) ([]byte, error) {
	var w bytes.Buffer
	if err := binary.Write(&w, binary.BigEndian, hdr); err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

type etherQueueEntry struct {
	typ  net.ProtocolType
	data []byte
}

// Ethernet drives a kernel TAP device. Open starts a reader goroutine that
// parses received frames, queues the payloads on the driver's private queue
// and raises the device interrupt; the interrupt handler drains the queue
// into Stack.Input.
type Ethernet struct {
	stack *net.Stack
	addr  EtherAddr
	file  io.ReadWriteCloser
	irq   net.IRQNumber

	mu    sync.Mutex // guards queue, shared with the service goroutine
	queue net.Queue[*etherQueueEntry]

	done chan struct{}
}

// EthernetInit opens the TAP device 'name' and registers an Ethernet device
// backed by it on s.
func EthernetInit(s *net.Stack, name string) (*net.Device, error) {
	name, file, err := raw.OpenTap(name)
	if err != nil {
		return nil, err
	}

	mac, err := raw.GetAddr(name)
	if err != nil {
		file.Close()
		return nil, err
	}
	var addr EtherAddr
	copy(addr[:], mac)

	e := &Ethernet{
		stack: s,
		addr:  addr,
		file:  file,
		irq:   EthernetIRQ,
	}
	dev := &net.Device{
		Type:      net.DeviceTypeEthernet,
		MTU:       EtherPayloadSizeMax,
		Flags:     net.DeviceFlagBroadcast | net.DeviceFlagNeedARP,
		HeaderLen: EtherHeaderSize,
		AddrLen:   EtherAddrLen,
		Addr:      addr,
		Broadcast: EtherAddrBroadcast,
		Driver:    e,
	}
	s.DeviceRegister(dev)
	if err := s.RequestIRQ(e.irq, e.isr, true, dev.Name(), dev); err != nil {
		file.Close()
		return nil, err
	}
	log.Printf("[I] initialized, dev=%s, addr=%s", dev.Name(), addr)
	return dev, nil
}

func (e *Ethernet) Open(dev *net.Device) error {
	e.done = make(chan struct{})
	go e.reader(dev)
	return nil
}

func (e *Ethernet) Close(*net.Device) error {
	close(e.done)
	// closing the file unblocks the pending read in the reader goroutine
	return e.file.Close()
}

func (e *Ethernet) Transmit(dev *net.Device, typ net.ProtocolType, data []byte, dst net.HardwareAddr) error {
	etherDst, ok := dst.(EtherAddr)
	if !ok {
		return fmt.Errorf("ethernet device only supports ethernet addresses, dev=%s", dev.Name())
	}

	hdr := EtherHeader{
		Dst:  etherDst,
		Src:  e.addr,
		Type: typ,
	}
	frame, err := header2data(hdr, data)
	if err != nil {
		return err
	}
	if _, err := e.file.Write(frame); err != nil {
		return err
	}
	log.Printf("[D] dev=%s, %s, len=%d", dev.Name(), hdr, len(data))
	return nil
}

func (e *Ethernet) reader(dev *net.Device) {
	buf := make([]byte, EtherFrameSizeMax)

	for {
		n, err := e.file.Read(buf)
		if err != nil {
			select {
			case <-e.done:
				return
			default:
			}
			log.Printf("[E] read failure, dev=%s: %s", dev.Name(), err)
			return
		}
		if n < EtherHeaderSize {
			log.Printf("[E] frame too short, dev=%s, len=%d", dev.Name(), n)
			continue
		}

		hdr, payload, err := data2header(buf[:n])
		if err != nil {
			log.Printf("[E] dev=%s: %s", dev.Name(), err)
			continue
		}

		// accept frames addressed to us or to everyone
		if hdr.Dst != e.addr && hdr.Dst != EtherAddrBroadcast {
			continue
		}

		entry := &etherQueueEntry{
			typ:  hdr.Type,
			data: make([]byte, len(payload)),
		}
		copy(entry.data, payload)

		e.mu.Lock()
		if e.queue.Len() >= ethernetQueueLimit {
			e.mu.Unlock()
			log.Printf("[E] queue is full, dev=%s", dev.Name())
			continue
		}
		e.queue.Push(entry)
		num := e.queue.Len()
		e.mu.Unlock()

		log.Printf("[D] queue pushed (num:%d), dev=%s, %s, len=%d", num, dev.Name(), hdr, n)
		if err := e.stack.RaiseIRQ(e.irq); err != nil {
			log.Printf("[E] irq raise failure, dev=%s: %s", dev.Name(), err)
		}
	}
}

// isr runs on the interrupt service goroutine, same discipline as the
// loopback driver: pop under the lock, input outside it.
func (e *Ethernet) isr(irq net.IRQNumber, dev *net.Device) {
	for {
		e.mu.Lock()
		entry, ok := e.queue.Pop()
		num := e.queue.Len()
		e.mu.Unlock()
		if !ok {
			break
		}
		log.Printf("[D] queue popped (num:%d), dev=%s, type=%s, len=%d", num, dev.Name(), entry.typ, len(entry.data))
		utils.DebugDump(entry.data)
		if err := e.stack.Input(entry.typ, entry.data, dev); err != nil {
			log.Printf("[E] input failure, dev=%s: %s", dev.Name(), err)
		}
	}
}
