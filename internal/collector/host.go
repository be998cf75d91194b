package collector

import (
	"context"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

const (
	unknownValue = "unknown"
	unknownCPU   = "Unknown CPU"
	localIPKey   = "local"
)

// HostFacts are the operating system, CPU, memory and network facts of a snapshot.
type HostFacts struct {
	Hostname        string
	OSType          string
	OSVersion       string
	CPUInfo         string
	MemoryTotal     uint64
	MemoryAvailable uint64
	IPAddresses     map[string]string
}

// HostSource reads host facts. Individual facts that cannot be read are
// reported as placeholders instead of failing the whole read.
type HostSource interface {
	HostFacts(ctx context.Context) HostFacts
}

// GopsutilSource reads host facts through gopsutil.
type GopsutilSource struct{}

func (GopsutilSource) HostFacts(ctx context.Context) HostFacts {
	facts := HostFacts{
		Hostname:    unknownValue,
		OSType:      osType(runtime.GOOS),
		OSVersion:   unknownValue,
		CPUInfo:     unknownCPU,
		IPAddresses: map[string]string{},
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		if info.Hostname != "" {
			facts.Hostname = info.Hostname
		}
		if v := osVersion(info); v != "" {
			facts.OSVersion = v
		}
	} else if name, err := os.Hostname(); err == nil && name != "" {
		facts.Hostname = name
	}

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		if model := strings.TrimSpace(infos[0].ModelName); model != "" {
			facts.CPUInfo = model
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		facts.MemoryTotal = vm.Total
		facts.MemoryAvailable = vm.Available
	}

	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		for name, ip := range interfaceIPv4(ifaces) {
			facts.IPAddresses[name] = ip
		}
	}
	if ip := outboundIP(); ip != "" {
		facts.IPAddresses[localIPKey] = ip
	}

	return facts
}

func osType(goos string) string {
	if goos == "darwin" {
		return "macos"
	}
	return goos
}

func osVersion(info *host.InfoStat) string {
	switch {
	case info.Platform != "" && info.PlatformVersion != "":
		return info.Platform + " " + info.PlatformVersion
	case info.PlatformVersion != "":
		return info.PlatformVersion
	default:
		return info.KernelVersion
	}
}

// interfaceIPv4 maps every up, non-loopback interface to its first IPv4 address.
func interfaceIPv4(ifaces psnet.InterfaceStatList) map[string]string {
	out := make(map[string]string)
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseAddr(addr.Addr)
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			out[iface.Name] = ip.String()
			break
		}
	}
	return out
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func parseAddr(s string) net.IP {
	if ip, _, err := net.ParseCIDR(s); err == nil {
		return ip
	}
	return net.ParseIP(s)
}

// outboundIP returns the address the kernel would use for outbound traffic.
// Connecting a UDP socket only selects a route; nothing is sent.
func outboundIP() string {
	conn, err := net.Dial("udp4", "192.0.2.1:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsUnspecified() {
		return addr.IP.String()
	}
	return ""
}
