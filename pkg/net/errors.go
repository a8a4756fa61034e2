package net

import "errors"

var (
	ErrDeviceAlreadyOpen = errors.New("device already opened")
	ErrDeviceNotOpen     = errors.New("device not opened")
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrProtocolDuplicate = errors.New("protocol already registered")
	ErrIRQConflict       = errors.New("conflicts with already registered IRQs")
	ErrIRQDelivery       = errors.New("irq delivery failure")
	ErrQueueFull         = errors.New("queue is full")
)
