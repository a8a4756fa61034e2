package net

import (
	"fmt"
	"log"
)

type DeviceType uint16

const (
	DeviceTypeDummy    DeviceType = 0x0000
	DeviceTypeLoopback DeviceType = 0x0001
	DeviceTypeEthernet DeviceType = 0x0002
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDummy:
		return "dummy"
	case DeviceTypeLoopback:
		return "loopback"
	case DeviceTypeEthernet:
		return "ethernet"
	default:
		return "unknown"
	}
}

const (
	DeviceFlagUp        uint16 = 0x0001
	DeviceFlagLoopback  uint16 = 0x0010
	DeviceFlagBroadcast uint16 = 0x0020
	DeviceFlagP2P       uint16 = 0x0040
	DeviceFlagNeedARP   uint16 = 0x0100
)

// HardwareAddr is the abstraction of a hardware address such as a MAC address.
type HardwareAddr interface {

	// Addr returns the raw address bytes
	Addr() []byte

	// String is for printing the address
	String() string
}

// Driver is the capability set a device driver supplies. Transmit is
// mandatory; drivers with no open/close semantics embed NopOpenCloser to
// get no-op hooks.
type Driver interface {
	Open(dev *Device) error
	Close(dev *Device) error
	Transmit(dev *Device, typ ProtocolType, data []byte, dst HardwareAddr) error
}

// NopOpenCloser provides no-op Open/Close hooks for drivers that only
// implement Transmit.
type NopOpenCloser struct{}

func (NopOpenCloser) Open(*Device) error  { return nil }
func (NopOpenCloser) Close(*Device) error { return nil }

// Device is one network interface tracked by the stack. Drivers fill in the
// exported fields before registration; index and name are assigned by
// DeviceRegister.
type Device struct {
	index uint
	name  string

	Type  DeviceType
	MTU   uint16
	Flags uint16

	HeaderLen uint16
	AddrLen   uint16

	Addr      HardwareAddr
	Peer      HardwareAddr
	Broadcast HardwareAddr

	Driver Driver
}

func (d *Device) Index() uint {
	return d.index
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) IsUp() bool {
	return d.Flags&DeviceFlagUp != 0
}

func (d *Device) State() string {
	if d.IsUp() {
		return "up"
	}
	return "down"
}

// DeviceRegister assigns the device its index and name and adds it to the
// stack's device list. Must not be called after Run.
func (s *Stack) DeviceRegister(dev *Device) {
	dev.index = s.deviceIndex
	s.deviceIndex++
	dev.name = fmt.Sprintf("net%d", dev.index)

	// head insertion, the list is traversed newest first
	s.devices = append([]*Device{dev}, s.devices...)
	log.Printf("[I] device registered, dev=%s, type=%s", dev.name, dev.Type)
}

// Open invokes the driver's open hook and marks the device up. A driver
// failure is returned unmodified and the device stays down.
func (s *Stack) Open(dev *Device) error {
	if dev.IsUp() {
		return fmt.Errorf("%w: dev=%s", ErrDeviceAlreadyOpen, dev.name)
	}
	if err := dev.Driver.Open(dev); err != nil {
		return err
	}
	dev.Flags |= DeviceFlagUp
	log.Printf("[I] dev=%s, state=%s", dev.name, dev.State())
	return nil
}

// Close invokes the driver's close hook and marks the device down.
func (s *Stack) Close(dev *Device) error {
	if !dev.IsUp() {
		return fmt.Errorf("%w: dev=%s", ErrDeviceNotOpen, dev.name)
	}
	if err := dev.Driver.Close(dev); err != nil {
		return err
	}
	dev.Flags &^= DeviceFlagUp
	log.Printf("[I] dev=%s, state=%s", dev.name, dev.State())
	return nil
}

// Output hands an outbound frame to the device driver. The device must be
// up and the frame must fit in its MTU; both are checked before the driver
// sees anything. A transmit failure is returned unmodified.
func (s *Stack) Output(dev *Device, typ ProtocolType, data []byte, dst HardwareAddr) error {
	if !dev.IsUp() {
		return fmt.Errorf("%w: dev=%s", ErrDeviceNotOpen, dev.name)
	}
	if len(data) > int(dev.MTU) {
		return fmt.Errorf("%w: dev=%s, mtu=%d, len=%d", ErrFrameTooLarge, dev.name, dev.MTU, len(data))
	}
	log.Printf("[D] device output, dev=%s, type=%s, len=%d", dev.name, typ, len(data))
	return dev.Driver.Transmit(dev, typ, data, dst)
}
