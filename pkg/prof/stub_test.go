//go:build !profile

package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStubSession(t *testing.T) {
	if Enabled() {
		t.Fatal("Enabled() = true without the profile tag")
	}
	dir := filepath.Join(t.TempDir(), "out")
	s, err := Start(dir)
	if err != nil || s == nil {
		t.Fatalf("Start() = %v, %v", s, err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("stub created the profile directory")
	}
}

func TestProfileString(t *testing.T) {
	if ProfileMutex.String() != "mutex" {
		t.Errorf("String() = %q", ProfileMutex.String())
	}
}
