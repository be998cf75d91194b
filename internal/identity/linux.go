package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

const (
	machineIDPath     = "/etc/machine-id"
	dbusMachineIDPath = "/var/lib/dbus/machine-id"
	productUUIDPath   = "/sys/class/dmi/id/product_uuid"
	boardSerialPath   = "/sys/class/dmi/id/board_serial"
	netClassPath      = "/sys/class/net"
)

var virtualInterfacePrefixes = []string{"lo", "docker", "veth"}

// LinuxProbe reads identifiers from procfs, sysfs and the machine-id files.
type LinuxProbe struct {
	machineIDPaths  []string
	productUUIDPath string
	boardSerialPath string
	netClassPath    string
}

// NewLinuxProbe creates a LinuxProbe with the standard system paths.
func NewLinuxProbe() *LinuxProbe {
	return &LinuxProbe{
		machineIDPaths:  []string{machineIDPath, dbusMachineIDPath},
		productUUIDPath: productUUIDPath,
		boardSerialPath: boardSerialPath,
		netClassPath:    netClassPath,
	}
}

func (p *LinuxProbe) Platform() string { return "linux" }

// Components returns machine_id, product_uuid, board_serial and mac, skipping
// any that cannot be read.
func (p *LinuxProbe) Components(_ context.Context) []Component {
	components := make([]Component, 0, 4)

	if id, err := p.MachineID(); err == nil {
		components = append(components, Component{Kind: "machine_id", Value: id})
	}
	if uuid, err := readTrimmed(p.productUUIDPath); err == nil {
		components = append(components, Component{Kind: "product_uuid", Value: uuid})
	}
	if serial, err := readTrimmed(p.boardSerialPath); err == nil && serial != "None" {
		components = append(components, Component{Kind: "board_serial", Value: serial})
	}
	if mac, err := p.MACAddress(); err == nil {
		components = append(components, Component{Kind: "mac", Value: mac})
	}

	return components
}

// MachineID returns the persistent machine id, preferring /etc/machine-id.
func (p *LinuxProbe) MachineID() (string, error) {
	for _, path := range p.machineIDPaths {
		if id, err := readTrimmed(path); err == nil {
			return id, nil
		}
	}
	return "", ErrComponentUnavailable
}

// MACAddress returns "<iface>:<mac>" for the first physical interface in
// directory order.
func (p *LinuxProbe) MACAddress() (string, error) {
	entries, err := os.ReadDir(p.netClassPath)
	if err != nil {
		return "", ErrComponentUnavailable
	}

	for _, entry := range entries {
		name := entry.Name()
		if isVirtualInterface(name) {
			continue
		}
		mac, err := readTrimmed(filepath.Join(p.netClassPath, name, "address"))
		if err != nil || mac == "00:00:00:00:00:00" {
			continue
		}
		return name + ":" + mac, nil
	}

	return "", ErrComponentUnavailable
}

func isVirtualInterface(name string) bool {
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", ErrComponentUnavailable
	}
	return value, nil
}
