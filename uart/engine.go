package uart

// HandleTick is the timer compare-match ISR of spec.md §4.4: one
// half-bit tick. It runs the RX half, then the TX half, then the RX
// bottom half, in that fixed order, and returns what the platform
// should do with the TX pin this tick.
//
// rxPinHigh is the live level of the RX pin, sampled by the platform
// immediately on entry (the AVR glue reads the physical pin; the
// Linux glue reads the periph.io gpio.PinIn it owns).
func (e *Engine) HandleTick(rxPinHigh bool) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rxHalf(rxPinHigh)
	res := e.txHalf()
	e.rxBottomHalf()
	return res
}

// HandleEdge is the pin-change ISR of spec.md §4.3, firing on the RX
// start-bit falling edge. timerCount is the live timer count read by
// the platform immediately on interrupt entry, to minimize
// measurement jitter; lineLow is the platform's confirmation that the
// RX pin is still low (AVR's PCINT group fires on both edges, so the
// handler must reject a spurious rising-edge report).
func (e *Engine) HandleEdge(timerCount uint8, lineLow bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.TXOnly || !e.rxEnabled.Load() || !e.rxArmed || !lineLow {
		return
	}
	e.rxArmed = false
	if timerCount < e.threshold {
		e.rxSampleCountdown = 2
	} else {
		e.rxSampleCountdown = 3
	}
	e.rxBitCounter = 0
	e.rxByte = 0
	e.rxPhase = false
	e.state.setRX(rxReceivedStart)
}

// rxHalf implements spec.md §4.4's RX half.
func (e *Engine) rxHalf(rxPinHigh bool) {
	if e.cfg.TXOnly {
		return
	}
	switch e.state.rx() {
	case rxReceivedStart:
		e.rxSampleCountdown--
		if e.rxSampleCountdown != 0 {
			return
		}
		if rxPinHigh {
			e.rxByte |= 1 << 0
		}
		e.rxBitCounter = 1
		e.rxPhase = false
		e.state.setRX(rxReceiving)

	case rxReceiving:
		if !e.rxPhase {
			e.rxPhase = true
			return
		}
		e.rxPhase = false
		if e.rxBitCounter < 8 {
			if rxPinHigh {
				e.rxByte |= 1 << e.rxBitCounter
			}
			e.rxBitCounter++
			return
		}
		// bitCounter == 8: this tick samples the stop bit.
		if rxPinHigh {
			e.rxBuf.append(e.rxByte)
		} else {
			e.framingError.Store(true)
		}
		e.rxBitCounter = 0
		e.rxByte = 0
		e.state.setRX(rxIdle)
		e.rxArmed = true
	}
}

// txHalf implements spec.md §4.4's TX half: tx_phase is a
// free-running div-2 of ticks, independent of the RX phase.
func (e *Engine) txHalf() TickResult {
	e.txPhase = !e.txPhase
	if !e.txPhase {
		return TickResult{}
	}
	switch e.state.tx() {
	case txSentStart:
		level := e.txByte&(1<<0) != 0
		e.txBitCounter = 1
		e.state.setTX(txSending)
		return TickResult{DriveTX: true, TXLevel: level}

	case txSending:
		if e.txBitCounter < 8 {
			level := e.txByte&(1<<e.txBitCounter) != 0
			e.txBitCounter++
			return TickResult{DriveTX: true, TXLevel: level}
		}
		if e.txBuf.shiftDown() {
			e.state.setTX(txIdle)
		} else {
			e.state.setTX(txLocked)
		}
		return TickResult{DriveTX: true, TXLevel: true}

	case txLocked:
		if e.txBuf.shiftDown() {
			e.state.setTX(txIdle)
		}
		return TickResult{}

	default: // txIdle
		if e.txBuf.count() > 0 {
			e.txByte = e.txBuf.peekHead()
			e.txBitCounter = 0
			e.state.setTX(txSentStart)
			return TickResult{DriveTX: true, TXLevel: false}
		}
		return TickResult{}
	}
}

// rxBottomHalf implements spec.md §4.4's bottom half: the deferred
// compaction that GetChar's dirty flag requests.
func (e *Engine) rxBottomHalf() {
	if e.cfg.TXOnly {
		return
	}
	if e.rxBuf.dirty.Load() {
		if e.rxBuf.shiftDown() {
			e.rxBuf.dirty.Store(false)
		}
	}
}
