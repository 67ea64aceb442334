package pkg

import "errors"

// Endpoint resource errors.
var (
	// ErrEndpointMemoryOverflow indicates the endpoint SRAM has no room left
	// for the requested buffer.
	ErrEndpointMemoryOverflow = errors.New("endpoint memory overflow")

	// ErrEndpointOverflow indicates no free endpoint slot was available for
	// an allocation without a fixed address.
	ErrEndpointOverflow = errors.New("endpoint overflow")

	// ErrInvalidEndpoint indicates an endpoint address that is out of range,
	// already claimed for a different type, or used in the wrong direction.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Transfer errors.
var (
	// ErrWouldBlock indicates the operation cannot complete now: no OUT data
	// is pending, or the previous IN transfer is still active.
	ErrWouldBlock = errors.New("operation would block")

	// ErrBufferOverflow indicates a packet does not fit the buffer provided
	// by the caller or the endpoint buffer.
	ErrBufferOverflow = errors.New("buffer overflow")
)

// Configuration errors.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrPeripheralTaken indicates the peripheral handle was already taken.
	ErrPeripheralTaken = errors.New("peripheral already taken")
)
