//go:build linux

package terminal

import (
	"syscall"

	"github.com/prometheus/procfs"
)

// setDeathSignal asks the kernel to hang up the child if the server dies
// without running teardown.
func setDeathSignal(attr *syscall.SysProcAttr) {
	attr.Pdeathsig = syscall.SIGHUP
}

// sessionMembers lists the live processes whose session id is sid. Spawn
// makes the child a session leader, so its pid names the session, and jobs
// it started keep that id after it has exited. Zombies are skipped.
func sessionMembers(sid int) []int {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil
	}

	var pids []int
	for _, proc := range procs {
		stat, err := proc.Stat()
		if err != nil || stat.Session != sid || stat.State == "Z" {
			continue
		}
		pids = append(pids, proc.PID)
	}
	return pids
}
