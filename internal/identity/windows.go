package identity

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// WindowsProbe reads the SMBIOS UUID and BIOS serial through wmic and the
// first physical MAC address through getmac.
type WindowsProbe struct {
	run CommandRunner
}

func NewWindowsProbe(run CommandRunner) *WindowsProbe {
	return &WindowsProbe{run: run}
}

func (p *WindowsProbe) Platform() string { return "windows" }

func (p *WindowsProbe) Components(ctx context.Context) []Component {
	var components []Component

	if out, err := p.run(ctx, "wmic", "csproduct", "get", "UUID"); err == nil {
		for _, uuid := range wmicValues(out, "UUID") {
			components = append(components, Component{Kind: "uuid", Value: uuid})
		}
	}

	if out, err := p.run(ctx, "wmic", "bios", "get", "serialnumber"); err == nil {
		for _, serial := range wmicValues(out, "SerialNumber") {
			components = append(components, Component{Kind: "serial", Value: serial})
		}
	}

	if out, err := p.run(ctx, "getmac", "/fo", "list"); err == nil {
		if mac, ok := parsePhysicalAddress(out); ok {
			components = append(components, Component{Kind: "mac", Value: mac})
		}
	}

	return components
}

// wmicValues returns the non-empty rows below the header of a single column
// wmic listing.
func wmicValues(out []byte, header string) []string {
	var values []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue
		}
		if line == "" || line == header {
			continue
		}
		values = append(values, line)
	}
	return values
}

func parsePhysicalAddress(out []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "Physical Address") {
			if mac, ok := valueAfterColon(line); ok {
				return mac, true
			}
		}
	}
	return "", false
}
