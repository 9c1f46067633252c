//go:build tinygo && avr

// command softuart-demo bit-bangs an 8-N-1 UART on two AVR GPIO pins
// (D2 TX, D3 RX — D3 keeps the RX pin on PCINT2's group, away from the
// board's hardware USART pins D0/D1) and echoes every received byte
// back out, for manual bring-up of the uart package on real silicon.
// This is the AVR build; see main_linux.go for the host-development
// variant.
package main

import (
	"machine"

	"github.com/robartes/softuart/platform/avr"
	"github.com/robartes/softuart/uart"
)

const demoBaud = uart.Baud9600

func main() {
	if err := run(); err != nil {
		blinkForever()
	}
}

func run() error {
	engine, err := uart.NewEngine(uart.Config{
		Baud:  demoBaud,
		CPUHz: 16_000_000,
	})
	if err != nil {
		return err
	}

	if _, err := avr.Open(engine, machine.D2, machine.D3); err != nil {
		return err
	}

	for {
		if engine.DataPending() == 0 {
			continue
		}
		b, ok := engine.GetChar()
		if !ok {
			continue
		}
		if engine.Overflow() {
			engine.ClearOverflow()
		}
		engine.PutChar(b)
	}
}

// blinkForever reports a setup failure the only way a bare AVR build
// can without a second UART to log to: a fast blink on the board LED.
func blinkForever() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		for i := 0; i < 200000; i++ {
		}
		led.Low()
		for i := 0; i < 200000; i++ {
		}
	}
}
