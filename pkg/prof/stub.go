//go:build !profile

package prof

// Profiling errors, never returned without the "profile" tag.
var (
	ErrSessionActive  error
	ErrInvalidProfile error
)

// Session is an inert profiling session.
type Session struct{}

// Enabled returns false when built without the "profile" tag.
func Enabled() bool {
	return false
}

// Start is a no-op when built without the "profile" tag.
func Start(_ string, _ ...Profile) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (s *Session) Stop() error {
	return nil
}
