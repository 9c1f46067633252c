//go:build linux && !tinygo

// command softuart-demo bit-bangs an 8-N-1 UART on two Raspberry Pi
// GPIO pins and echoes every received byte back out, for manual
// bring-up of the uart package against a USB-serial loopback adapter.
// This is the host-development build; see main_avr.go for the
// variant that runs on real AVR hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"periph.io/x/host/v3/bcm283x"

	"github.com/robartes/softuart/platform/linux"
	"github.com/robartes/softuart/uart"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "softuart-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))

	baud := flag.Uint("baud", 9600, "baud rate (2400, 9600, 19200, 38400, 57600, 115200)")
	flag.Parse()

	engine, err := uart.NewEngine(uart.Config{
		Baud:  uart.Baud(*baud),
		CPUHz: 16_000_000,
	})
	if err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}

	port, err := linux.Open(engine, bcm283x.GPIO14, bcm283x.GPIO15)
	if err != nil {
		return fmt.Errorf("open GPIO port: %w", err)
	}
	defer port.Close()

	log.Printf("softuart-demo: echoing at %d baud on GPIO14 (TX) / GPIO15 (RX)", *baud)
	for {
		if engine.DataPending() == 0 {
			continue
		}
		b, ok := engine.GetChar()
		if !ok {
			continue
		}
		if engine.Overflow() {
			log.Print("softuart-demo: RX overflow, clearing")
			engine.ClearOverflow()
		}
		if err := engine.PutChar(b); err != nil {
			log.Printf("softuart-demo: echo dropped: %v", err)
		}
	}
}
