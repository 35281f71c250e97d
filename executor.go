package norflash

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// DefaultBusTimeout bounds a single transfer. A 64KB read at 30MHz takes
// about 18ms.
const DefaultBusTimeout = 50 * time.Millisecond

// Executor shifts command frames over a SPI connection. Each frame is one
// transfer with chip select held low.
type Executor struct {
	conn    spi.Conn
	cs      gpio.PinOut
	timeout time.Duration

	mu   sync.Mutex
	done chan struct{} // non-nil while a transfer is in flight
}

// NewExecutor returns an executor over conn. A timeout of 0 waits
// indefinitely.
func NewExecutor(conn spi.Conn, cs gpio.PinOut, timeout time.Duration) *Executor {
	return &Executor{conn: conn, cs: cs, timeout: timeout}
}

// tx wraps SPI transaction with CS assertion.
func (e *Executor) tx(buf []byte) (err error) {
	if err = e.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := e.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = e.conn.Tx(buf, buf)
	return
}

// Execute performs fr in exactly one transfer and returns the number of data
// bytes moved. For reads buf receives the data, for writes it supplies it;
// len(buf) must equal fr.Len. buf is not referenced after Execute returns.
//
// If the transfer does not complete within the bus timeout Execute returns
// ErrBusTimeout. The transfer stays in flight until the bus returns and
// further calls fail with ErrBusBusy until then.
func (e *Executor) Execute(fr Frame, buf []byte) (int, error) {
	if fr.Dir != DirNone && len(buf) != fr.Len {
		return 0, fmt.Errorf("%v: buffer holds %d bytes, frame needs %d", fr.Op, len(buf), fr.Len)
	}
	h := fr.HeaderLen()
	xfer := make([]byte, h+fr.Len)
	fr.putHeader(xfer)
	if fr.Dir == DirWrite {
		copy(xfer[h:], buf)
	}

	e.mu.Lock()
	if e.done != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("%v: %w", fr.Op, ErrBusBusy)
	}
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		err := e.tx(xfer)
		e.mu.Lock()
		e.done = nil
		e.mu.Unlock()
		close(done)
		errc <- err
	}()

	var expired <-chan time.Time
	if e.timeout > 0 {
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-errc:
		if err != nil {
			return 0, &BusError{Op: fr.Op, Err: err}
		}
	case <-expired:
		return 0, fmt.Errorf("%v: %w after %v", fr.Op, ErrBusTimeout, e.timeout)
	}

	if fr.Dir == DirRead {
		copy(buf, xfer[h:])
	}
	return fr.Len, nil
}

// Busy reports whether a transfer is in flight.
func (e *Executor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done != nil
}

// Wait blocks until no transfer is in flight or timeout elapses, in which
// case it returns ErrBusBusy.
func (e *Executor) Wait(timeout time.Duration) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrBusBusy
	}
}
