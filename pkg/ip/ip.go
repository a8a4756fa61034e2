package ip

import (
	"log"

	"github.com/kura-karakaru/microps/pkg/net"
	"github.com/kura-karakaru/microps/pkg/utils"
)

// Init registers the IPv4 input handler on s.
func Init(s *net.Stack) error {
	return s.ProtocolRegister(net.ProtocolTypeIP, input)
}

// input receives demultiplexed IPv4 datagrams. Header parsing is not
// implemented yet; the datagram is only reported.
func input(data []byte, dev *net.Device) {
	log.Printf("[D] ip input, dev=%s, len=%d", dev.Name(), len(data))
	utils.DebugDump(data)
}
