package uart

// Baud is one of the supported UART symbol rates. spec.md allows
// exactly these six; anything else is rejected at construction.
type Baud uint32

const (
	Baud2400   Baud = 2400
	Baud9600   Baud = 9600
	Baud19200  Baud = 19200
	Baud38400  Baud = 38400
	Baud57600  Baud = 57600
	Baud115200 Baud = 115200
)

func (b Baud) valid() bool {
	switch b {
	case Baud2400, Baud9600, Baud19200, Baud38400, Baud57600, Baud115200:
		return true
	}
	return false
}

// marginTicks approximates the ISR entry latency subtracted from the
// half-way threshold, so an edge whose timer count lands just short of
// the midpoint is classified as "late" rather than "early".
const marginTicks = 2

// prescalers lists the dividers available between the CPU clock and
// the timer, smallest first, matching the classic AVR timer1
// prescaler set.
var prescalers = [...]uint16{1, 8, 64, 256, 1024}

type timingEntry struct {
	prescaler uint16
	ocr       uint8
}

// timingTable precomputes (prescaler, OCR) for the CPU clocks the
// target family actually ships with, per spec.md §4.1's "for known
// CPU/baud pairs the implementation SHOULD use a precomputed table".
var timingTable = map[uint32]map[Baud]timingEntry{
	8_000_000: {
		Baud2400:   {prescaler: 8, ocr: 207},
		Baud9600:   {prescaler: 8, ocr: 51},
		Baud19200:  {prescaler: 1, ocr: 207},
		Baud38400:  {prescaler: 1, ocr: 103},
		Baud57600:  {prescaler: 1, ocr: 68},
		Baud115200: {prescaler: 1, ocr: 34},
	},
	16_000_000: {
		Baud2400:   {prescaler: 64, ocr: 51},
		Baud9600:   {prescaler: 8, ocr: 103},
		Baud19200:  {prescaler: 8, ocr: 51},
		Baud38400:  {prescaler: 1, ocr: 207},
		Baud57600:  {prescaler: 1, ocr: 138},
		Baud115200: {prescaler: 1, ocr: 68},
	},
}

// computeOCR implements spec.md §4.1's fallback formula:
//
//	OCR = round(F_CPU / prescaler / (2 * baud)) - 1
//
// rejecting results that don't fit in 8 bits.
func computeOCR(cpuHz uint32, prescaler uint16, baud Baud) (uint8, error) {
	divisor := uint64(prescaler) * 2 * uint64(baud)
	if divisor == 0 {
		return 0, ErrBaudUnsupported
	}
	raw := (uint64(cpuHz) + divisor/2) / divisor
	if raw == 0 {
		return 0, ErrBaudUnsupported
	}
	ocr := raw - 1
	if ocr > 0xff {
		return 0, ErrBaudUnsupported
	}
	return uint8(ocr), nil
}

func thresholdFor(ocr uint8) uint8 {
	half := int(ocr) / 2
	th := half - marginTicks
	if th < 1 {
		th = 1
	}
	return uint8(th)
}

// SuitablePrescaler returns the smallest prescaler that keeps the
// derived OCR within 8 bits for baud at cpuHz, resolving spec.md
// §4.1's "prescaler chosen so the ISR fires at approximately twice
// the bit rate" into a concrete selection policy: the smallest
// prescaler gives the finest timing resolution.
func SuitablePrescaler(cpuHz uint32, baud Baud) (uint16, error) {
	for _, p := range prescalers {
		if _, err := computeOCR(cpuHz, p, baud); err == nil {
			return p, nil
		}
	}
	return 0, ErrBaudUnsupported
}

// DeriveTiming computes the timer prescaler, compare value and RX
// edge-offset threshold for baud at cpuHz. Known CPU clocks use the
// precomputed table; others fall back to SuitablePrescaler and
// computeOCR, per spec.md §4.1.
func DeriveTiming(cpuHz uint32, baud Baud) (prescaler uint16, ocr uint8, threshold uint8, err error) {
	if !baud.valid() {
		return 0, 0, 0, ErrBaudUnsupported
	}
	if table, ok := timingTable[cpuHz]; ok {
		if e, ok := table[baud]; ok {
			return e.prescaler, e.ocr, thresholdFor(e.ocr), nil
		}
	}
	p, err := SuitablePrescaler(cpuHz, baud)
	if err != nil {
		return 0, 0, 0, err
	}
	ocr, err = computeOCR(cpuHz, p, baud)
	if err != nil {
		return 0, 0, 0, err
	}
	return p, ocr, thresholdFor(ocr), nil
}
