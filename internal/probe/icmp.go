package probe

import (
	"context"
	"errors"
	"fmt"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/user/pingwatch/internal/model"
)

// ICMPPinger sends ICMP echo requests in-process instead of spawning
// the ping utility. Privileged selects raw sockets; the default UDP
// mode works unprivileged on Linux with ping_group_range configured.
type ICMPPinger struct {
	Privileged bool
}

// Ping sends params.Count echo requests and reports the average
// round-trip time of the replies.
func (p *ICMPPinger) Ping(ctx context.Context, host string, params model.ProbeParams) (bool, string) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, fmt.Sprintf("Error: %v", err)
	}
	pinger.Count = params.Count
	pinger.Timeout = params.Timeout
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return false, "Timeout"
		}
		return false, fmt.Sprintf("Error: %v", err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		if ctx.Err() != nil {
			return false, "Timeout"
		}
		return false, "No response"
	}
	return true, fmt.Sprintf("%.1fms", float64(stats.AvgRtt.Microseconds())/1000.0)
}
