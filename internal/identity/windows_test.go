package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowsProbe_Components(t *testing.T) {
	p := NewWindowsProbe(fakeRunner(map[string]string{
		"wmic csproduct get UUID":    "UUID                                  \r\r\n4C4C4544-0031-3510-8053-B4C04F4E3332  \r\r\n\r\r\n",
		"wmic bios get serialnumber": "SerialNumber  \r\r\n5Q5SN32       \r\r\n",
		"getmac /fo list":            "\r\nPhysical Address: 3C-52-82-5A-1B-2C\r\nTransport Name:   \\Device\\Tcpip_{1}\r\n",
	}))

	got := p.Components(context.Background())
	require.Equal(t, []Component{
		{Kind: "uuid", Value: "4C4C4544-0031-3510-8053-B4C04F4E3332"},
		{Kind: "serial", Value: "5Q5SN32"},
		{Kind: "mac", Value: "3C-52-82-5A-1B-2C"},
	}, got)
}
