package device

import (
	"log"
	"math"

	"github.com/kura-karakaru/microps/pkg/net"
	"github.com/kura-karakaru/microps/pkg/utils"
)

const (
	dummyMTU = math.MaxUint16

	DummyIRQ = net.IRQBase
)

// Dummy discards every frame written to it. Transmit still raises the
// device interrupt, so the whole output-to-interrupt path can be observed
// with no hardware at all.
type Dummy struct {
	net.NopOpenCloser
	stack *net.Stack
}

// DummyInit registers a dummy device and its interrupt handler on s.
func DummyInit(s *net.Stack) (*net.Device, error) {
	d := &Dummy{stack: s}
	dev := &net.Device{
		Type:   net.DeviceTypeDummy,
		MTU:    dummyMTU,
		Driver: d,
	}
	s.DeviceRegister(dev)
	if err := s.RequestIRQ(DummyIRQ, d.isr, true, dev.Name(), dev); err != nil {
		return nil, err
	}
	log.Printf("[I] initialized, dev=%s", dev.Name())
	return dev, nil
}

func (d *Dummy) Transmit(dev *net.Device, typ net.ProtocolType, data []byte, dst net.HardwareAddr) error {
	log.Printf("[D] dev=%s, type=%s, len=%d", dev.Name(), typ, len(data))
	utils.DebugDump(data)
	// drop data
	if err := d.stack.RaiseIRQ(DummyIRQ); err != nil {
		log.Printf("[E] irq raise failure, dev=%s: %s", dev.Name(), err)
	}
	return nil
}

func (d *Dummy) isr(irq net.IRQNumber, dev *net.Device) {
	log.Printf("[D] irq=%d, dev=%s", irq, dev.Name())
}
