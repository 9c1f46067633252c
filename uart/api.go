package uart

import "runtime"

// PutChar enqueues b on the TX buffer. It returns ErrFull if the
// buffer has no room, per spec.md §4.5.
func (e *Engine) PutChar(b byte) error {
	if !e.state.initialised() {
		return ErrNotInitialised
	}
	e.txBuf.lockSpin()
	ok := e.txBuf.append(b)
	e.txBuf.unlock()
	if !ok {
		return ErrFull
	}
	return nil
}

// SendData calls PutChar for each byte of p in order, stopping at the
// first failure. It returns the number of bytes accepted, which may
// be less than len(p); per spec.md §4.5 this is not atomic across the
// sequence.
func (e *Engine) SendData(p []byte) (int, error) {
	for i, b := range p {
		if err := e.PutChar(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// DataPending returns the number of complete bytes queued in the RX
// buffer. It spins until any in-flight GetChar's dirty bit has been
// retired by the tick ISR's bottom half, so the count it returns is
// stable, per spec.md §4.5.
func (e *Engine) DataPending() int {
	if e.cfg.TXOnly {
		return 0
	}
	if e.rxBuf.count() == 0 {
		return 0
	}
	for e.rxBuf.dirty.Load() {
		runtime.Gosched()
	}
	return e.rxBuf.count()
}

// GetChar returns the byte at the head of the RX buffer and marks it
// consumed, so the tick ISR's bottom half advances the buffer on its
// next invocation. ok is false if the Engine is TX-only or the RX
// buffer was empty; spec.md §4.5 leaves that case undefined, but
// reporting it via the comma-ok idiom is a strictly safer
// strengthening that costs callers nothing (DataPending() > 0 still
// guarantees ok == true).
func (e *Engine) GetChar() (b byte, ok bool) {
	if e.cfg.TXOnly || e.rxBuf.count() == 0 {
		return 0, false
	}
	for e.rxBuf.dirty.Load() {
		runtime.Gosched()
	}
	b = e.rxBuf.peekHead()
	e.rxBuf.dirty.Store(true)
	return b, true
}

// EnableReceive arms the pin-change edge capture, per spec.md §4.5.
func (e *Engine) EnableReceive() {
	if e.cfg.TXOnly {
		return
	}
	e.rxEnabled.Store(true)
}

// DisableReceive disarms the pin-change edge capture; any RX frame in
// progress continues to completion, matching the real interrupt-mask
// semantics this method stands in for (disabling a hardware interrupt
// doesn't unwind work already started by it).
func (e *Engine) DisableReceive() {
	e.rxEnabled.Store(false)
}

// Overflow reports whether the RX buffer has dropped a committed
// frame for lack of room since the last ClearOverflow. This resolves
// spec.md §9's open question in favor of exposing the flag.
func (e *Engine) Overflow() bool {
	if e.cfg.TXOnly {
		return false
	}
	return e.rxBuf.overflow.Load()
}

// ClearOverflow resets the sticky RX overflow flag.
func (e *Engine) ClearOverflow() {
	if e.cfg.TXOnly {
		return
	}
	e.rxBuf.overflow.Store(false)
}

// FramingError reports whether an RX frame was discarded for a
// missing stop bit since the last ClearFramingError. Also resolves an
// open question from spec.md §9.
func (e *Engine) FramingError() bool {
	return e.framingError.Load()
}

// ClearFramingError resets the sticky framing-error flag.
func (e *Engine) ClearFramingError() {
	e.framingError.Store(false)
}
