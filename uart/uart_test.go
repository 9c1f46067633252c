package uart

import "testing"

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.CPUHz == 0 {
		cfg.CPUHz = 16_000_000
	}
	if cfg.Baud == 0 {
		cfg.Baud = Baud9600
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// feedByte drives the engine's RX side through exactly the tick
// schedule rxHalf/HandleEdge produce for an early-arriving start-bit
// edge (timerCount 0, always below threshold), so the tick at which
// each bit is sampled is known precisely: tick 1 only advances
// sample_countdown, tick (2+2i) samples data bit i for i in 0..7, and
// the final tick inspects the stop bit.
func feedByte(e *Engine, b byte, stopHigh bool) {
	e.HandleEdge(0, true)
	e.HandleTick(true) // sample_countdown: 2 -> 1
	for i := uint(0); i < 8; i++ {
		bit := b&(1<<i) != 0
		e.HandleTick(bit) // samples data bit i
		e.HandleTick(true) // mid-bit wait tick
	}
	e.HandleTick(stopHigh) // stop bit
}

func TestRXLoopbackAllBytes(t *testing.T) {
	e := newTestEngine(t, Config{})
	for b := 0; b < 256; b++ {
		feedByte(e, byte(b), true)
		if n := e.DataPending(); n != 1 {
			t.Fatalf("byte %#02x: DataPending() = %d, want 1", b, n)
		}
		got, ok := e.GetChar()
		if !ok {
			t.Fatalf("byte %#02x: GetChar() ok = false", b)
		}
		if got != byte(b) {
			t.Fatalf("GetChar() = %#02x, want %#02x", got, b)
		}
		// Run the tick once more so the bottom half retires the
		// consumed head before the next frame is fed.
		e.HandleTick(true)
		if e.DataPending() != 0 {
			t.Fatalf("byte %#02x: DataPending() after drain = %d, want 0", b, e.DataPending())
		}
	}
}

func TestRXFramingErrorDropsByteButNotStream(t *testing.T) {
	e := newTestEngine(t, Config{})
	feedByte(e, 0x55, false) // stop bit low: framing error
	if !e.FramingError() {
		t.Fatal("FramingError() = false, want true after bad stop bit")
	}
	if n := e.DataPending(); n != 0 {
		t.Fatalf("DataPending() = %d, want 0 for a discarded frame", n)
	}

	// The following clean frame must still be received correctly.
	feedByte(e, 0xAA, true)
	got, ok := e.GetChar()
	if !ok || got != 0xAA {
		t.Fatalf("GetChar() = (%#02x, %v), want (0xaa, true)", got, ok)
	}
}

func TestRXOverflow(t *testing.T) {
	e := newTestEngine(t, Config{RXBufferSize: 2})
	feedByte(e, 0x01, true)
	feedByte(e, 0x02, true)
	if e.Overflow() {
		t.Fatal("Overflow() = true before the buffer is full")
	}
	feedByte(e, 0x03, true) // dropped: buffer holds only 2
	if !e.Overflow() {
		t.Fatal("Overflow() = false, want true after a dropped frame")
	}
	if n := e.DataPending(); n != 2 {
		t.Fatalf("DataPending() = %d, want 2", n)
	}

	for _, want := range []byte{0x01, 0x02} {
		got, ok := e.GetChar()
		if !ok || got != want {
			t.Fatalf("GetChar() = (%#02x, %v), want (%#02x, true)", got, ok, want)
		}
		e.HandleTick(true) // bottom half retires the consumed head
	}
	e.ClearOverflow()
	feedByte(e, 0x04, true)
	got, ok := e.GetChar()
	if !ok || got != 0x04 {
		t.Fatalf("after overflow clear: GetChar() = (%#02x, %v), want (0x04, true)", got, ok)
	}
}

func TestDisableReceiveIgnoresEdges(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.DisableReceive()
	feedByte(e, 0x41, true)
	if e.DataPending() != 0 {
		t.Fatal("a frame was received while receive was disabled")
	}
	e.EnableReceive()
	feedByte(e, 0x41, true)
	got, ok := e.GetChar()
	if !ok || got != 0x41 {
		t.Fatalf("after re-enabling: GetChar() = (%#02x, %v), want (0x41, true)", got, ok)
	}
}

// frameBits returns the wire bit sequence (excluding idle) for one
// 8-N-1 frame of b: start, 8 data bits LSB-first, stop.
func frameBits(b byte) []bool {
	bits := make([]bool, 0, 10)
	bits = append(bits, false) // start
	for i := uint(0); i < 8; i++ {
		bits = append(bits, b&(1<<i) != 0)
	}
	bits = append(bits, true) // stop
	return bits
}

func TestTXEmitsWireFrame(t *testing.T) {
	// End-to-end scenario 1 of spec.md §8: 0x41 at 9600 baud.
	e := newTestEngine(t, Config{})
	if err := e.PutChar(0x41); err != nil {
		t.Fatalf("PutChar: %v", err)
	}

	var got []bool
	for i := 0; i < 30 && len(got) < 10; i++ {
		res := e.HandleTick(true)
		if res.DriveTX {
			got = append(got, res.TXLevel)
		}
	}

	want := frameBits(0x41)
	if len(got) != len(want) {
		t.Fatalf("got %d TX transitions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestPutCharFullThenDrains(t *testing.T) {
	e := newTestEngine(t, Config{TXBufferSize: 2})
	if err := e.PutChar(1); err != nil {
		t.Fatalf("PutChar(1): %v", err)
	}
	if err := e.PutChar(2); err != nil {
		t.Fatalf("PutChar(2): %v", err)
	}
	if err := e.PutChar(3); err != ErrFull {
		t.Fatalf("PutChar(3) = %v, want ErrFull", err)
	}

	// Run enough ticks to transmit the first queued byte and free a
	// slot (10 bits * 2 ticks/bit, with margin).
	for i := 0; i < 25; i++ {
		e.HandleTick(true)
	}
	if err := e.PutChar(3); err != nil {
		t.Fatalf("PutChar(3) after drain: %v", err)
	}
}

func TestSendDataShortWrite(t *testing.T) {
	e := newTestEngine(t, Config{TXBufferSize: 2})
	n, err := e.SendData([]byte{1, 2, 3})
	if n != 2 || err != ErrFull {
		t.Fatalf("SendData = (%d, %v), want (2, ErrFull)", n, err)
	}
}

func TestTXOnlyHasNoRXSurface(t *testing.T) {
	e := newTestEngine(t, Config{TXOnly: true})
	if e.DataPending() != 0 {
		t.Fatal("DataPending() != 0 in TX_ONLY mode")
	}
	if _, ok := e.GetChar(); ok {
		t.Fatal("GetChar() ok = true in TX_ONLY mode")
	}
	e.HandleEdge(0, true)
	if e.Overflow() {
		t.Fatal("Overflow() = true in TX_ONLY mode")
	}
	if err := e.PutChar(0x55); err != nil {
		t.Fatalf("PutChar in TX_ONLY mode: %v", err)
	}
}

func TestDeriveTimingKnownClocks(t *testing.T) {
	cases := []struct {
		cpuHz uint32
		baud  Baud
	}{
		{8_000_000, Baud9600},
		{8_000_000, Baud115200},
		{16_000_000, Baud2400},
		{16_000_000, Baud115200},
	}
	for _, c := range cases {
		_, ocr, threshold, err := DeriveTiming(c.cpuHz, c.baud)
		if err != nil {
			t.Fatalf("DeriveTiming(%d, %d): %v", c.cpuHz, c.baud, err)
		}
		if threshold == 0 || threshold >= ocr {
			t.Fatalf("DeriveTiming(%d, %d): threshold %d not sane for ocr %d", c.cpuHz, c.baud, threshold, ocr)
		}
	}
}

func TestDeriveTimingRejectsUnreachableBaud(t *testing.T) {
	if _, _, _, err := DeriveTiming(2_000_000_000, Baud2400); err != ErrBaudUnsupported {
		t.Fatalf("DeriveTiming with an unreachable baud = %v, want ErrBaudUnsupported", err)
	}
}

func TestDeriveTimingRejectsInvalidBaud(t *testing.T) {
	if _, _, _, err := DeriveTiming(16_000_000, Baud(1234)); err != ErrBaudUnsupported {
		t.Fatalf("DeriveTiming with an invalid baud = %v, want ErrBaudUnsupported", err)
	}
}

func TestPutCharBeforeInitialise(t *testing.T) {
	var e Engine
	if err := e.PutChar(1); err != ErrNotInitialised {
		t.Fatalf("PutChar on a zero Engine = %v, want ErrNotInitialised", err)
	}
}
