package norflash

import "time"

// Config holds the driver configuration.
type Config struct {
	// Descriptor overrides the geometry learned from the JEDEC ID.
	Descriptor *Descriptor

	// BusTimeout bounds each transfer. Zero waits indefinitely.
	BusTimeout time.Duration

	// PollInterval is the first delay between status reads.
	PollInterval time.Duration

	// ReadyTimeout overrides the per-operation program and erase times
	// used as status poll timeouts.
	ReadyTimeout time.Duration

	// Retries is the number of times an indirect read is repeated after a
	// bus timeout. Program and erase are never repeated.
	Retries int

	// Mapper configures a controller-side mapped window. Without one the
	// window is served by read frames on the bus.
	Mapper Mapper

	// BusWidth is the number of data lines the transport drives. A plain
	// spi.Conn is Single. Quad continuous read is used only when both the
	// bus and the part are Quad, and requires a Mapper.
	BusWidth Width

	Logger Logger
}

func defaultConfig() Config {
	return Config{
		BusTimeout:   DefaultBusTimeout,
		PollInterval: DefaultPollInterval,
		Retries:      2,
		BusWidth:     Single,
	}
}

// Option is a functional option for configuring the Flash.
type Option func(*Config)

// WithDescriptor fixes the device geometry instead of looking it up by
// JEDEC ID.
func WithDescriptor(d Descriptor) Option {
	return func(c *Config) {
		c.Descriptor = &d
	}
}

// WithBusTimeout sets the per-transfer timeout.
func WithBusTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.BusTimeout = timeout
		}
	}
}

// WithPollInterval sets the initial interval between status reads.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithReadyTimeout sets one timeout for all program and erase completions.
func WithReadyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadyTimeout = timeout
	}
}

// WithRetries sets how many times a timed out read is retried.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithMapper uses m to configure the mapped window.
func WithMapper(m Mapper) Option {
	return func(c *Config) {
		c.Mapper = m
	}
}

// WithBusWidth declares the data lines driven by the controller behind conn
// and the Mapper.
func WithBusWidth(w Width) Option {
	return func(c *Config) {
		c.BusWidth = w
	}
}

// WithLogger sets a logger for driver operations.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Logger is an optional logging interface with key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
