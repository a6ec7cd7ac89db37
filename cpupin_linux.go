// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vcore

import "golang.org/x/sys/unix"

// pinToCore pins the calling OS thread to the given logical CPU before a
// VirtualCore's startup barrier. It must be called from
// the goroutine that will run the VirtualCore's loop and after
// runtime.LockOSThread, or the affinity applies to whichever thread the Go
// scheduler happens to be running it on next.
func pinToCore(core CoreID) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(int(core))
	return unix.SchedSetaffinity(0, &set)
}
