//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/usbhs/pkg"
)

// Profiling errors.
var (
	// ErrSessionActive indicates a session is already running.
	ErrSessionActive = errors.New("profiling session already active")

	// ErrInvalidProfile indicates an unknown profile name.
	ErrInvalidProfile = errors.New("invalid profile")
)

var (
	// sessionMutex guards active.
	sessionMutex sync.Mutex
	active       bool
)

// Session is a running profiling session.
type Session struct {
	dir      string
	profiles []Profile
	cpu      *os.File
	stopped  bool
}

// Enabled reports whether profiling is compiled in.
func Enabled() bool {
	return true
}

// Start begins a session writing into dir, which is created if missing.
// The CPU profile is recorded until Stop; the other profiles are written
// by Stop. With no profiles, DefaultProfiles are used.
func Start(dir string, profiles ...Profile) (*Session, error) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if active {
		return nil, ErrSessionActive
	}
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	for _, p := range profiles {
		if p != ProfileCPU && pprof.Lookup(string(p)) == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProfile, p)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, "cpu.prof"))
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	for _, p := range profiles {
		switch p {
		case ProfileMutex:
			runtime.SetMutexProfileFraction(1)
		case ProfileBlock:
			runtime.SetBlockProfileRate(1)
		}
	}

	active = true
	pkg.LogInfo(pkg.ComponentCLI, "profiling started", "dir", dir)
	return &Session{dir: dir, profiles: profiles, cpu: f}, nil
}

// Stop ends the CPU profile and writes the snapshot profiles. Calling Stop
// more than once is harmless.
func (s *Session) Stop() error {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	active = false

	pprof.StopCPUProfile()
	errs := []error{s.cpu.Close()}
	for _, p := range s.profiles {
		if p == ProfileCPU {
			continue
		}
		errs = append(errs, s.write(p))
	}
	runtime.SetMutexProfileFraction(0)
	runtime.SetBlockProfileRate(0)

	pkg.LogInfo(pkg.ComponentCLI, "profiling stopped", "dir", s.dir)
	return errors.Join(errs...)
}

func (s *Session) write(p Profile) error {
	f, err := os.Create(filepath.Join(s.dir, string(p)+".prof"))
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.Lookup(string(p)).WriteTo(f, 0)
}
