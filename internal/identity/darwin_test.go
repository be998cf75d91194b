package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const hardwareOverview = `Hardware:

    Hardware Overview:

      Model Name: MacBook Pro
      Serial Number (system): C02XK1JHJG5J
      Hardware UUID: 6A3B3F2E-8C1D-5B5E-9F0A-1B2C3D4E5F60
`

const ifconfigEn0 = `en0: flags=8863<UP,BROADCAST,SMART,RUNNING,SIMPLEX,MULTICAST> mtu 1500
	options=6463<RXCSUM,TXCSUM,TSO4,TSO6,CHANNEL_IO,PARTIAL_CSUM,ZEROINVERT_CSUM>
	ether a4:83:e7:12:34:56
	inet 192.168.1.20 netmask 0xffffff00 broadcast 192.168.1.255
`

func fakeRunner(outputs map[string]string) CommandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		out, ok := outputs[key]
		if !ok {
			return nil, errors.New("command not found")
		}
		return []byte(out), nil
	}
}

func TestDarwinProbe_Components(t *testing.T) {
	t.Run("reads hardware overview and en0", func(t *testing.T) {
		p := NewDarwinProbe(fakeRunner(map[string]string{
			"system_profiler SPHardwareDataType": hardwareOverview,
			"ifconfig en0":                       ifconfigEn0,
		}))

		got := p.Components(context.Background())
		require.Equal(t, []Component{
			{Kind: "serial", Value: "C02XK1JHJG5J"},
			{Kind: "hw_uuid", Value: "6A3B3F2E-8C1D-5B5E-9F0A-1B2C3D4E5F60"},
			{Kind: "mac", Value: "a4:83:e7:12:34:56"},
		}, got)
	})

	t.Run("tolerates a failing utility", func(t *testing.T) {
		p := NewDarwinProbe(fakeRunner(map[string]string{
			"ifconfig en0": ifconfigEn0,
		}))

		got := p.Components(context.Background())
		require.Equal(t, []Component{{Kind: "mac", Value: "a4:83:e7:12:34:56"}}, got)
	})
}
