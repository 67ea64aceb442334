package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{
		ErrEndpointMemoryOverflow,
		ErrEndpointOverflow,
		ErrInvalidEndpoint,
		ErrWouldBlock,
		ErrBufferOverflow,
		ErrInvalidParameter,
		ErrPeripheralTaken,
	}

	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors.Is(%v, %v) = true, want false", a, b)
			}
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"memory", ErrEndpointMemoryOverflow},
		{"overflow", ErrEndpointOverflow},
		{"invalid", ErrInvalidEndpoint},
		{"block", ErrWouldBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("alloc ep 0x81: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.err)
			}
		})
	}
}
