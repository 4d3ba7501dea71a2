//go:build linux

package sim

import "golang.org/x/sys/unix"

// threadID identifies the calling OS thread. The current instance is kept
// per OS thread, so goroutines must hold runtime.LockOSThread across a
// set-current-then-call sequence.
func threadID() int {
	return unix.Gettid()
}
