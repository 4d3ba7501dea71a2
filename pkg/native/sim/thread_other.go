//go:build !linux

package sim

// threadID returns a single shared slot on platforms without a cheap
// thread id, so the current instance is process-wide there.
func threadID() int {
	return 0
}
