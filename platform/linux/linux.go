//go:build linux && !tinygo

// Package linux binds a uart.Engine to real GPIO pins on a Linux
// single-board computer, for bring-up and testing without an AVR
// toolchain. It follows driver/wshat's pattern of a goroutine blocked
// on periph.io's edge-interrupt primitive standing in for a hardware
// ISR; the periodic tick ISR is approximated with a Linux timerfd
// rather than a goroutine parked on time.Ticker, so its period is set
// once by the kernel instead of redrawn by the Go scheduler on every
// firing.
package linux

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"

	"github.com/robartes/softuart/uart"
)

// Port drives a uart.Engine from two goroutines standing in for the
// pin-change and timer compare-match interrupts.
type Port struct {
	Engine *uart.Engine

	txPin gpio.PinIO
	rxPin gpio.PinIO

	timerFD int
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open initializes periph's host drivers, configures txPin/rxPin and
// starts the tick and edge goroutines. The tick period is derived
// from engine's prescaler/OCR assuming a 16MHz timer clock (see
// tickPeriod), so the wall-clock tick rate matches the baud rate only
// for an engine built with CPUHz 16_000_000 (periph.io GPIO cannot
// approach a real 8-bit timer's jitter, so this path is for
// development, not production timing fidelity).
func Open(engine *uart.Engine, txPin, rxPin gpio.PinIO) (*Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("linux: host.Init: %w", err)
	}
	if err := txPin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("linux: configure TX pin: %w", err)
	}
	if !engine.TXOnly() {
		if err := rxPin.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("linux: configure RX pin: %w", err)
		}
	}

	period := tickPeriod(engine)
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		return nil, fmt.Errorf("linux: timerfd_create: %w", err)
	}
	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(period.Nanoseconds()),
		Interval: unix.NsecToTimespec(period.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("linux: timerfd_settime: %w", err)
	}

	p := &Port{
		Engine:  engine,
		txPin:   txPin,
		rxPin:   rxPin,
		timerFD: fd,
		done:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.tickLoop()
	if !engine.TXOnly() {
		p.wg.Add(1)
		go p.edgeLoop()
	}
	return p, nil
}

// tickPeriod derives the wall-clock period of one half-bit tick from
// the engine's baud-derived OCR and prescaler, scaled to a notional
// 16MHz AVR cycle time: period = (OCR+1) * prescaler / 16MHz.
func tickPeriod(engine *uart.Engine) time.Duration {
	const notionalCPUHz = 16_000_000
	cycles := uint64(engine.OCR()+1) * uint64(engine.Prescaler())
	return time.Duration(cycles) * time.Second / notionalCPUHz
}

func (p *Port) tickLoop() {
	defer p.wg.Done()
	buf := make([]byte, 8)
	for {
		select {
		case <-p.done:
			return
		default:
		}
		if _, err := unix.Read(p.timerFD, buf); err != nil {
			continue
		}
		res := p.Engine.HandleTick(p.rxPin.Read() == gpio.High)
		if res.DriveTX {
			level := gpio.Low
			if res.TXLevel {
				level = gpio.High
			}
			p.txPin.Out(level)
		}
	}
}

func (p *Port) edgeLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		default:
		}
		if !p.rxPin.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		// No TCNT1-equivalent register is available from a GPIO
		// character device, so the edge is always treated as early.
		p.Engine.HandleEdge(0, p.rxPin.Read() == gpio.Low)
	}
}

// EnableReceive/DisableReceive forward to the engine; unlike
// platform/avr there is no separate hardware interrupt-enable bit to
// toggle on a GPIO character device, so the engine's own rxEnabled
// gate does the whole job here.
func (p *Port) EnableReceive()  { p.Engine.EnableReceive() }
func (p *Port) DisableReceive() { p.Engine.DisableReceive() }

// Close stops both goroutines and releases the timerfd.
func (p *Port) Close() error {
	close(p.done)
	p.wg.Wait()
	return unix.Close(p.timerFD)
}
