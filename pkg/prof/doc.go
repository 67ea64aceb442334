// Package prof profiles the driver tooling with [runtime/pprof].
//
// It is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/usbhsctl
//	usbhsctl loopback --profile-dir /tmp/prof
//
// A [Session] records a CPU profile while it runs and, on Stop, writes the
// requested snapshot profiles next to it. The mutex profile is the one to
// look at for bus lock contention between the poll loop and the host.
//
// Without the tag every function is a no-op and [Enabled] returns false, so
// callers need no build tags of their own.
package prof

// Profile names a pprof profile.
type Profile string

// Profiles.
const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// String returns the profile name.
func (p Profile) String() string {
	return string(p)
}

// DefaultProfiles are written by a Session started without explicit
// profiles.
var DefaultProfiles = []Profile{ProfileHeap, ProfileMutex, ProfileBlock}
