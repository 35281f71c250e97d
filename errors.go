package norflash

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress       = errors.New("invalid address")
	ErrBusTimeout           = errors.New("bus timeout")
	ErrBus                  = errors.New("bus error")
	ErrBusBusy              = errors.New("bus busy")
	ErrMode                 = errors.New("wrong access mode")
	ErrVerificationMismatch = errors.New("verification mismatch")
)

// AddressError reports a frame that does not fit the device geometry.
type AddressError struct {
	Op     Op
	Addr   int
	Len    int
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%v at 0x%06X (%d bytes): %s", e.Op, e.Addr, e.Len, e.Reason)
}

func (e *AddressError) Unwrap() error { return ErrInvalidAddress }

// BusError reports a fault signalled by the bus or chip select line.
type BusError struct {
	Op  Op
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%v: bus error: %v", e.Op, e.Err)
}

func (e *BusError) Is(target error) bool { return target == ErrBus }
func (e *BusError) Unwrap() error        { return e.Err }

// MismatchError reports the first differing byte of a comparison.
type MismatchError struct {
	Addr int
	Want byte
	Got  byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("data mismatch at 0x%06X: want 0x%02X, got 0x%02X", e.Addr, e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrVerificationMismatch }

// Compare returns a *MismatchError for the first byte where got differs from
// want. addr is the device address of want[0].
func Compare(addr int, want, got []byte) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: length %d, want %d", ErrVerificationMismatch, len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return &MismatchError{Addr: addr + i, Want: want[i], Got: got[i]}
		}
	}
	return nil
}

// Numeric error codes printed on the console.
const (
	CodeOK                   uint32 = 0
	CodeInvalidAddress       uint32 = 0x0101
	CodeBusTimeout           uint32 = 0x0201
	CodeBus                  uint32 = 0x0202
	CodeBusBusy              uint32 = 0x0203
	CodeMode                 uint32 = 0x0301
	CodeVerificationMismatch uint32 = 0x0401
	CodeUnknown              uint32 = 0xFFFF
)

// Code maps err to its numeric error code.
func Code(err error) uint32 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidAddress):
		return CodeInvalidAddress
	case errors.Is(err, ErrBusTimeout):
		return CodeBusTimeout
	case errors.Is(err, ErrBusBusy):
		return CodeBusBusy
	case errors.Is(err, ErrBus):
		return CodeBus
	case errors.Is(err, ErrMode):
		return CodeMode
	case errors.Is(err, ErrVerificationMismatch):
		return CodeVerificationMismatch
	}
	return CodeUnknown
}

// Retryable reports whether err is a transient bus timeout. Address, mode and
// verification errors need the caller to change what it asks for.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusTimeout)
}
