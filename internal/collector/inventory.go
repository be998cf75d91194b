package collector

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/hostward/device-agent/internal/identity"
)

// Lister enumerates one inventory category. Failures are reported to the
// caller, which records an empty list rather than failing the snapshot.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]string, error)

func (f ListerFunc) List(ctx context.Context) ([]string, error) { return f(ctx) }

// ServiceLister returns the service lister for goos.
func ServiceLister(goos string, run identity.CommandRunner) Lister {
	switch goos {
	case "linux":
		return &systemdServices{run: run}
	case "darwin":
		return ListerFunc(func(ctx context.Context) ([]string, error) {
			out, err := run(ctx, "launchctl", "list")
			if err != nil {
				return nil, err
			}
			return parseLaunchctl(out), nil
		})
	case "windows":
		return ListerFunc(func(ctx context.Context) ([]string, error) {
			out, err := run(ctx, "powershell", "-NoProfile", "-Command",
				"Get-Service | Select-Object -ExpandProperty Name")
			if err != nil {
				return nil, err
			}
			return parseLines(out), nil
		})
	default:
		return ListerFunc(func(context.Context) ([]string, error) { return nil, nil })
	}
}

// SoftwareLister returns the installed software lister for goos.
func SoftwareLister(goos string, run identity.CommandRunner) Lister {
	switch goos {
	case "linux":
		return ListerFunc(func(ctx context.Context) ([]string, error) {
			out, err := run(ctx, "dpkg-query", "-W", "-f=${Package}\n")
			if err == nil {
				return parseLines(out), nil
			}
			out, rpmErr := run(ctx, "rpm", "-qa")
			if rpmErr != nil {
				return nil, err
			}
			return parseLines(out), nil
		})
	case "darwin":
		return ListerFunc(func(context.Context) ([]string, error) {
			return listApplications("/Applications")
		})
	case "windows":
		return ListerFunc(func(ctx context.Context) ([]string, error) {
			out, err := run(ctx, "powershell", "-NoProfile", "-Command",
				`Get-ItemProperty HKLM:\Software\Microsoft\Windows\CurrentVersion\Uninstall\* | `+
					`Where-Object DisplayName | Select-Object -ExpandProperty DisplayName`)
			if err != nil {
				return nil, err
			}
			return parseLines(out), nil
		})
	default:
		return ListerFunc(func(context.Context) ([]string, error) { return nil, nil })
	}
}

// systemdServices asks systemd over D-Bus and falls back to systemctl when
// the bus is unreachable, for example inside minimal containers.
type systemdServices struct {
	run identity.CommandRunner
}

func (s *systemdServices) List(ctx context.Context) ([]string, error) {
	if names, err := s.viaDBus(ctx); err == nil {
		return names, nil
	}

	out, err := s.run(ctx, "systemctl", "list-units", "--type=service", "--all", "--no-legend", "--plain")
	if err != nil {
		return nil, err
	}
	return parseSystemctl(out), nil
}

func (s *systemdServices) viaDBus(ctx context.Context) ([]string, error) {
	conn, err := dbus.NewSystemdConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	units, err := conn.ListUnitsByPatternsContext(ctx, nil, []string{"*.service"})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, serviceEntry(u.Name, u.ActiveState, u.SubState))
	}
	sort.Strings(names)
	return names, nil
}

func parseLines(out []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func serviceEntry(name, active, sub string) string {
	return name + " (" + active + "/" + sub + ")"
}

// parseSystemctl reads the UNIT LOAD ACTIVE SUB columns of
// `systemctl list-units --plain --no-legend`.
func parseSystemctl(out []byte) []string {
	var names []string
	for _, line := range parseLines(out) {
		fields := strings.Fields(line)
		if len(fields) < 4 || !strings.HasSuffix(fields[0], ".service") {
			continue
		}
		names = append(names, serviceEntry(fields[0], fields[2], fields[3]))
	}
	sort.Strings(names)
	return names
}

// parseLaunchctl keeps the label column of `launchctl list`.
func parseLaunchctl(out []byte) []string {
	var labels []string
	for i, line := range parseLines(out) {
		fields := strings.Fields(line)
		if i == 0 && len(fields) > 0 && fields[0] == "PID" {
			continue
		}
		if len(fields) >= 3 {
			labels = append(labels, fields[2])
		}
	}
	return labels
}

func listApplications(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var apps []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".app"); ok {
			apps = append(apps, name)
		}
	}
	return apps, nil
}
