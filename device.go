package norflash

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device is a flash chip reached through an FT2232H MPSSE SPI port.
type Device struct {
	FTDI  *ftdi.FT232H
	Flash *Flash

	cs    gpio.PinIO // ADBUS4 Chip Select
	reset gpio.PinIO // ADBUS7 Reset of the other bus master

	clock physic.Frequency
	port  spi.PortCloser
	conn  spi.Conn
}

var hostInitialized atomic.Bool

// NewDevice finds FT2232H device, opens MPSSE/SPI connection and creates the
// flash driver with opts.
func NewDevice(opts ...Option) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	d := &Device{
		clock: 30 * physic.MegaHertz, // [FTDI-AN_135 3.2.1 Divisors]
	}
	if err := d.findFT2232H(); err != nil {
		return nil, err
	}

	// [EB82|Appendix A. Sheet 2 of 5 (USB to SPI/RS232)] / [icebreaker-sch.pdf]
	// ADBUS0 | SCK
	// ADBUS1 | FLASH_MOSI
	// ADBUS2 | FLASH_MISO
	// ADBUS4 | FLASH_SS_B
	// ADBUS7 | CRESET of the FPGA sharing the bus
	d.cs = d.FTDI.D4
	d.reset = d.FTDI.D7

	if err := d.connectSPI(); err != nil {
		return nil, err
	}

	f, err := New(d.conn, d.cs, opts...)
	if err != nil {
		d.port.Close()
		return nil, err
	}
	d.Flash = f
	return d, nil
}

// HoldBusMaster keeps the other SPI master on the board in reset so the host
// owns the flash bus.
func (d *Device) HoldBusMaster() error {
	return d.reset.Out(gpio.Low)
}

// ReleaseBusMaster releases the other SPI master from reset.
func (d *Device) ReleaseBusMaster() error {
	return d.reset.Out(gpio.High)
}

// Close releases the SPI port.
func (d *Device) Close() error {
	return d.port.Close()
}

func (d *Device) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("FT2232H device not found")
}

func (d *Device) connectSPI() (err error) {
	if d.FTDI == nil {
		return errors.New("FT2232H device not found")
	}

	d.port, err = d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI-AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// [N25Q32|Table 7: SPI Modes] mode 0 and mode 3 are supported
	d.conn, err = d.port.Connect(d.clock, spi.Mode0, 8)
	if err != nil {
		d.port.Close()
		return fmt.Errorf("failed to connect SPI port: %w", err)
	}
	return nil
}
