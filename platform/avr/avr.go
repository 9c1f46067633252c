//go:build tinygo && avr

// Package avr binds a uart.Engine to the timer compare-match vector
// and the pin-change vector of a classic 8-bit AVR part (the atmega328p
// class of chip TinyGo's "arduino"/"atmega328p" targets build for),
// the way driver/tmc2209's PIO glue binds a state machine to RP2040
// interrupts: a thin trampoline per vector, volatile register access
// for the timer, and machine.Pin for direction/pull configuration.
package avr

import (
	"device/avr"
	"errors"
	"runtime/interrupt"
	"runtime/volatile"

	"machine"

	"github.com/robartes/softuart/uart"
)

// Port is a live binding of a uart.Engine to hardware: one timer, one
// TX pin, one RX pin, two interrupt vectors.
type Port struct {
	Engine *uart.Engine

	txPin machine.Pin
	rxPin machine.Pin

	rxPCINTBit uint8

	tick interrupt.Interrupt
	edge interrupt.Interrupt
}

// timer1 mirrors the subset of ATmega328P's 16-bit Timer/Counter1
// register block this driver programs. Declared as volatile
// registers rather than a struct overlay of the whole peripheral,
// matching driver/dma's preference for narrow, purpose-built register
// views over the full SVD-generated type.
var timer1 = struct {
	TCCR1A *volatile.Register8
	TCCR1B *volatile.Register8
	TIMSK1 *volatile.Register8
	OCR1AL *volatile.Register8
	TCNT1L *volatile.Register8
}{
	TCCR1A: &avr.TCCR1A,
	TCCR1B: &avr.TCCR1B,
	TIMSK1: &avr.TIMSK1,
	OCR1AL: &avr.OCR1AL,
	TCNT1L: &avr.TCNT1L,
}

const (
	wgm12     = 0b1 << 3 // CTC mode (clear timer on compare match)
	ocie1a    = 0b1 << 1 // OCR1A compare-match interrupt enable
	csMaskCS1 = 0b111    // clock-select bits

	pcie2 = 0b1 << 2 // pin-change interrupt enable, PCINT[23:16] group
)

// pcint2Bit returns the PCMSK2 bit index for pin, which must be one of
// PORTD's pins (PCINT[23:16], Arduino Uno's digital pins 0-7) since
// that's the only group IRQ_PCINT2 covers.
func pcint2Bit(pin machine.Pin) (uint8, error) {
	if pin < machine.PD0 || pin > machine.PD7 {
		return 0, errors.New("avr: rxPin must be in the PCINT2 group (digital pins 0-7)")
	}
	return uint8(pin - machine.PD0), nil
}

func prescalerBits(prescaler uint16) (uint8, error) {
	switch prescaler {
	case 1:
		return 0b001, nil
	case 8:
		return 0b010, nil
	case 64:
		return 0b011, nil
	case 256:
		return 0b100, nil
	case 1024:
		return 0b101, nil
	default:
		return 0, errors.New("avr: unsupported prescaler")
	}
}

// Open programs timer1 with engine's derived prescaler and OCR,
// configures the pins and binds the ISR vectors to engine, returning a
// running Port. rxPin must belong to the AVR's PCINT2 bank (Arduino
// Uno's digital pins 0-7), per spec.md §6's "pin-change interrupt for
// the group containing the RX pin"; Open returns an error otherwise.
func Open(engine *uart.Engine, txPin, rxPin machine.Pin) (*Port, error) {
	if timer1.TCCR1B.Get()&csMaskCS1 != 0 {
		return nil, errors.New("avr: timer1 is already running")
	}
	csBits, err := prescalerBits(engine.Prescaler())
	if err != nil {
		return nil, err
	}
	rxBit, err := pcint2Bit(rxPin)
	if err != nil {
		return nil, err
	}

	txPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	txPin.High()
	rxPin.Configure(machine.PinConfig{Mode: machine.PinInput})

	p := &Port{Engine: engine, txPin: txPin, rxPin: rxPin, rxPCINTBit: rxBit}

	timer1.TCCR1A.Set(0)
	timer1.TCCR1B.Set(wgm12)
	timer1.OCR1AL.Set(engine.OCR())
	avr.PCMSK2.Set(0)

	p.tick = interrupt.New(avr.IRQ_TIMER1_COMPA, p.handleTick)
	p.tick.SetPriority(0xff)
	p.edge = interrupt.New(avr.IRQ_PCINT2, p.handleEdge)
	p.edge.SetPriority(0xff)

	timer1.TIMSK1.SetBits(ocie1a)
	timer1.TCCR1B.SetBits(csBits)
	p.tick.Enable()

	p.EnableReceive()
	return p, nil
}

func (p *Port) handleTick(interrupt.Interrupt) {
	res := p.Engine.HandleTick(p.rxPin.Get())
	if res.DriveTX {
		p.txPin.Set(res.TXLevel)
	}
}

func (p *Port) handleEdge(interrupt.Interrupt) {
	t := timer1.TCNT1L.Get()
	p.Engine.HandleEdge(t, !p.rxPin.Get())
}

// EnableReceive arms rxPin's bit in PCMSK2, the PCINT2 group enable in
// PCICR, and the engine's own edge-capture logic. PCIE2 alone does not
// unmask any pin; PCMSK2's per-pin bit must also be set, or
// IRQ_PCINT2 never fires for an edge on rxPin.
func (p *Port) EnableReceive() {
	avr.PCMSK2.SetBits(1 << p.rxPCINTBit)
	avr.PCICR.SetBits(pcie2)
	p.edge.Enable()
	p.Engine.EnableReceive()
}

// DisableReceive masks rxPin's pin-change interrupt; any frame already
// in flight on the engine completes via the tick ISR regardless.
func (p *Port) DisableReceive() {
	avr.PCICR.ClearBits(pcie2)
	avr.PCMSK2.ClearBits(1 << p.rxPCINTBit)
	p.edge.Disable()
	p.Engine.DisableReceive()
}
