package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLatency(t *testing.T) {
	linuxOut := `PING 8.8.8.8 (8.8.8.8) 56(84) bytes of data.
64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=12.3 ms

--- 8.8.8.8 ping statistics ---
1 packets transmitted, 1 received, 0% packet loss, time 0ms
`
	assert.Equal(t, "12.3ms", parseLatency([]byte(linuxOut)))
}

func TestParseLatencyAttachedUnit(t *testing.T) {
	out := "64 bytes from 1.1.1.1: icmp_seq=1 ttl=58 time=8.91ms\n"
	assert.Equal(t, "8.91ms", parseLatency([]byte(out)))
}

func TestParseLatencyNoTime(t *testing.T) {
	out := "PING 10.0.0.1 (10.0.0.1) 56(84) bytes of data.\n"
	assert.Equal(t, "", parseLatency([]byte(out)))
}

func TestForMode(t *testing.T) {
	assert.IsType(t, &SystemPinger{}, ForMode("system", false))
	assert.IsType(t, &SystemPinger{}, ForMode("", false))
	assert.IsType(t, &ICMPPinger{}, ForMode("icmp", true))
}
