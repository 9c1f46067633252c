package uart

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Config configures an Engine. CPUHz and Baud are required; the
// buffer sizes default to DefaultBufferSize when left zero.
type Config struct {
	// Baud is the wire symbol rate.
	Baud Baud
	// CPUHz is the clock driving the timer that ticks the engine,
	// used to derive the timer prescaler, compare value and RX
	// edge-offset threshold (spec.md §4.1).
	CPUHz uint32

	// RXBufferSize and TXBufferSize override RX_BUFFER_SIZE /
	// TX_BUFFER_SIZE (spec.md §6). Zero means DefaultBufferSize.
	RXBufferSize int
	TXBufferSize int

	// TXOnly drops the RX subsystem entirely, per spec.md §9's
	// TX_ONLY variant: no RX buffer is allocated, HandleEdge becomes a
	// no-op, and DataPending and GetChar return 0 and (0, false).
	TXOnly bool
}

// TickResult reports what the tick ISR wants the platform to do to
// the TX pin this tick. DriveTX is false on ticks where TX made no
// transition (the free-running tx_phase "skip" tick, or TX idle with
// nothing queued).
type TickResult struct {
	DriveTX bool
	TXLevel bool
}

// Engine is the bit-bang UART core of spec.md: the two ring buffers,
// the connection state, and the bit cursors/phase counters, plus the
// foreground API and the two ISR-equivalent methods (HandleTick,
// HandleEdge). It has no hardware dependency; platform/avr and
// platform/linux bind it to real timers and pins.
type Engine struct {
	cfg Config

	prescaler uint16
	ocr       uint8
	threshold uint8

	// mu serializes HandleTick and HandleEdge against each other,
	// modeling spec.md §5's "interrupts do not nest": on real
	// hardware the two ISRs can never run concurrently because
	// global interrupts are masked on entry, but platform/linux
	// drives them from two real goroutines, so an explicit lock is
	// the faithful stand-in.
	mu sync.Mutex

	state connState

	rxBuf *ringBuffer
	txBuf *ringBuffer

	rxEnabled atomic.Bool
	// rxArmed mirrors the pin-change interrupt enable bit that
	// spec.md §4.3 step 3 disables on edge capture and §4.4's RX
	// half re-enables once a frame completes.
	rxArmed bool

	framingError atomic.Bool

	// RX bit cursor/phase, ISR-private per spec.md §3 Ownership.
	rxPhase           bool
	rxSampleCountdown uint8
	rxBitCounter      uint8
	rxByte            byte

	// TX bit cursor/phase, ISR-private, free-running independent of
	// RX phase.
	txPhase      bool
	txBitCounter uint8
	txByte       byte
}

// NewEngine validates cfg, derives the timer configuration, allocates
// the ring buffers and returns a ready Engine — the Go-idiomatic
// equivalent of spec.md §4.5's initialise(config). An Engine not
// built by NewEngine (such as a zero Engine) is not initialised, and
// PutChar/SendData on it return ErrNotInitialised.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.CPUHz == 0 {
		return nil, errors.New("uart: Config.CPUHz must be set")
	}
	prescaler, ocr, threshold, err := DeriveTiming(cfg.CPUHz, cfg.Baud)
	if err != nil {
		return nil, err
	}
	if cfg.RXBufferSize <= 0 {
		cfg.RXBufferSize = DefaultBufferSize
	}
	if cfg.TXBufferSize <= 0 {
		cfg.TXBufferSize = DefaultBufferSize
	}

	e := &Engine{
		cfg:       cfg,
		prescaler: prescaler,
		ocr:       ocr,
		threshold: threshold,
		txBuf:     newRingBuffer(cfg.TXBufferSize, false),
	}
	if !cfg.TXOnly {
		e.rxBuf = newRingBuffer(cfg.RXBufferSize, true)
		e.rxArmed = true
		e.rxEnabled.Store(true)
	}
	e.state.setRX(rxIdle)
	e.state.setTX(txIdle)
	e.state.setInitialised(true)
	return e, nil
}

// Prescaler and OCR are the derived timer configuration, for platform
// glue to program into the hardware timer.
func (e *Engine) Prescaler() uint16 { return e.prescaler }
func (e *Engine) OCR() uint8        { return e.ocr }
func (e *Engine) Threshold() uint8  { return e.threshold }

// TXOnly reports whether the Engine was built with Config.TXOnly set.
func (e *Engine) TXOnly() bool { return e.cfg.TXOnly }
