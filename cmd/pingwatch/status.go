package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/pingwatch/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the current status of the pingwatch daemon and its jobs.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)

	if running {
		fmt.Printf("Daemon: running (PID %d)\n", pid)
	} else {
		fmt.Println("Daemon: stopped")
	}

	sf, err := daemon.ReadStatusFile(cfg.DataDir)
	if err != nil || !running {
		return nil
	}

	fmt.Printf("Started: %s\n", sf.StartTime)
	fmt.Printf("Uptime:  %s\n", sf.Uptime)

	if len(sf.Jobs) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Jobs:")
	for _, job := range sf.Jobs {
		state := "idle"
		if job.Running {
			state = "running"
		}
		fmt.Printf("  %-20s %-10s schedule=%q next=%s errors=%d skipped=%d\n",
			job.Name, state, job.Schedule,
			job.NextRun.Format("2006-01-02 15:04:05"),
			job.ErrorCount, job.SkippedTicks)
	}
	return nil
}
