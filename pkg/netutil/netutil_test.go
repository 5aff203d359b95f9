package netutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListen_PicksPortForZero(t *testing.T) {
	lis, port, err := Listen("0")
	require.NoError(t, err)
	defer lis.Close()
	assert.Positive(t, port)

	_, _, err = Listen(strconv.Itoa(port))
	assert.Error(t, err, "port already bound")
}

func TestAdvertiseAddr(t *testing.T) {
	assert.Equal(t, "10.0.0.5:6000", AdvertiseAddr("10.0.0.5:6000", 50061))

	host, port, err := net.SplitHostPort(AdvertiseAddr("", 50061))
	require.NoError(t, err)
	assert.Equal(t, "50061", port)
	assert.NotNil(t, net.ParseIP(host))
}
