package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kura-karakaru/microps/pkg/device"
	"github.com/kura-karakaru/microps/pkg/net"
)

var testdata = []byte{
	0x45, 0x00, 0x00, 0x30,
	0x00, 0x80, 0x00, 0x00,
	0xff, 0x01, 0xbd, 0x4a,
	0x7f, 0x00, 0x00, 0x01,
	0x7f, 0x00, 0x00, 0x01,
	0x08, 0x00, 0x35, 0x64,
	0x00, 0x80, 0x00, 0x01,
	0x31, 0x32, 0x33, 0x34,
	0x35, 0x36, 0x37, 0x38,
	0x39, 0x30, 0x21, 0x40,
	0x23, 0x24, 0x25, 0x5e,
	0x26, 0x2a, 0x28, 0x29,
}

func main() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	s := net.NewStack()
	dev, err := device.DummyInit(s)
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Run(); err != nil {
		log.Fatal(err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			s.Shutdown()
			return
		case <-ticker.C:
			if err := s.Output(dev, net.ProtocolTypeIP, testdata, nil); err != nil {
				log.Printf("[E] output failure: %s", err)
				s.Shutdown()
				return
			}
		}
	}
}
