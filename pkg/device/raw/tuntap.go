package raw

import (
	"fmt"
	gonet "net"
	"os"

	"golang.org/x/sys/unix"
)

const cloneDevice = "/dev/net/tun"

// OpenTap opens the TAP device 'name', brings the interface up and returns
// the resolved name together with the opened device file. name may be a
// format string such as "tap%d"; the kernel fills in the real name.
func OpenTap(name string) (string, *os.File, error) {
	if len(name) >= unix.IFNAMSIZ {
		return "", nil, fmt.Errorf("device name is too long: %s", name)
	}

	fd, err := unix.Open(cloneDevice, unix.O_RDWR, 0600)
	if err != nil {
		return "", nil, err
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return "", nil, err
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return "", nil, err
	}
	name = ifr.Name()

	// https://github.com/golang/go/issues/30426
	unix.SetNonblock(fd, true)
	file := os.NewFile(uintptr(fd), cloneDevice)

	flags, err := GetFlags(name)
	if err != nil {
		file.Close()
		return "", nil, err
	}
	flags |= unix.IFF_UP | unix.IFF_RUNNING
	if err := SetFlags(name, flags); err != nil {
		file.Close()
		return "", nil, err
	}

	return name, file, nil
}

// GetAddr returns the hardware address of the interface 'name'.
func GetAddr(name string) ([]byte, error) {
	ifi, err := gonet.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return ifi.HardwareAddr, nil
}

// GetFlags returns the active flag word of the interface 'name'.
func GetFlags(name string) (uint16, error) {
	soc, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(soc)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(soc, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, err
	}
	return ifr.Uint16(), nil
}

// SetFlags sets the active flag word of the interface 'name'.
func SetFlags(name string, flags uint16) error {
	soc, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(soc)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	ifr.SetUint16(flags)
	return unix.IoctlIfreq(soc, unix.SIOCSIFFLAGS, ifr)
}
