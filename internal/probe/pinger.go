// Package probe executes host reachability checks with bounded
// parallelism.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/user/pingwatch/internal/model"
)

// Pinger performs a single reachability check against one host. It
// returns whether the host responded and a detail string: a latency
// like "12.3ms" on success, a reason ("No response", "Timeout",
// "Error: ...") on failure. Implementations must respect the timeout
// in params and the context deadline.
type Pinger interface {
	Ping(ctx context.Context, host string, params model.ProbeParams) (bool, string)
}

// ForMode returns the pinger selected by a config probe_mode value.
// Unknown modes fall back to the system pinger.
func ForMode(mode string, privileged bool) Pinger {
	switch mode {
	case "icmp":
		return &ICMPPinger{Privileged: privileged}
	default:
		return &SystemPinger{}
	}
}

// SystemPinger shells out to the platform ping utility, one process
// per probe.
type SystemPinger struct{}

// Ping runs `ping -c <count> -W <timeout> <host>` and parses the
// reported round-trip time.
func (p *SystemPinger) Ping(ctx context.Context, host string, params model.ProbeParams) (bool, string) {
	cmd := exec.CommandContext(ctx, "ping",
		"-c", strconv.Itoa(params.Count),
		"-W", strconv.Itoa(int(params.Timeout.Seconds())),
		host)

	out, err := cmd.Output()
	if ctx.Err() != nil {
		return false, "Timeout"
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, "No response"
		}
		return false, fmt.Sprintf("Error: %v", err)
	}

	if latency := parseLatency(out); latency != "" {
		return true, latency
	}
	return true, "N/A"
}

// parseLatency extracts the first "time=" value from ping output.
// Returns "" when no round-trip time is present.
func parseLatency(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		idx := strings.Index(line, "time=")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("time="):]
		if sp := strings.IndexAny(rest, " \t"); sp >= 0 {
			rest = rest[:sp]
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			continue
		}
		if strings.HasSuffix(rest, "ms") {
			return rest
		}
		return rest + "ms"
	}
	return ""
}
