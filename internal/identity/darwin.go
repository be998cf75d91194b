package identity

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// DarwinProbe reads the hardware UUID and serial from system_profiler and the
// en0 MAC address from ifconfig.
type DarwinProbe struct {
	run CommandRunner
}

func NewDarwinProbe(run CommandRunner) *DarwinProbe {
	return &DarwinProbe{run: run}
}

func (p *DarwinProbe) Platform() string { return "darwin" }

func (p *DarwinProbe) Components(ctx context.Context) []Component {
	var components []Component

	if out, err := p.run(ctx, "system_profiler", "SPHardwareDataType"); err == nil {
		components = append(components, parseHardwareOverview(out)...)
	}

	if out, err := p.run(ctx, "ifconfig", "en0"); err == nil {
		if mac, ok := parseEther(out); ok {
			components = append(components, Component{Kind: "mac", Value: mac})
		}
	}

	return components
}

func parseHardwareOverview(out []byte) []Component {
	var components []Component
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "Hardware UUID"):
			if uuid, ok := valueAfterColon(line); ok {
				components = append(components, Component{Kind: "hw_uuid", Value: uuid})
			}
		case strings.Contains(line, "Serial Number"):
			if serial, ok := valueAfterColon(line); ok && serial != "(system)" {
				components = append(components, Component{Kind: "serial", Value: serial})
			}
		}
	}
	return components
}

func parseEther(out []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "ether" {
			return fields[1], true
		}
	}
	return "", false
}
