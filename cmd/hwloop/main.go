// command hwloop drives the round-trip and boundary scenarios of
// spec.md §8 against physical wire: a real OS serial port, opened
// with github.com/tarm/serial, is wired on the bench to the GPIO pins
// a platform/linux uart.Engine bit-bangs, so both sides of the link
// are under test at once.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/robartes/softuart/platform/linux"
	"github.com/robartes/softuart/uart"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hwloop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))

	device := flag.String("device", "/dev/ttyUSB0", "reference OS serial port wired to the engine's pins")
	baud := flag.Uint("baud", 115200, "baud rate to test")
	txPinName := flag.String("tx", "GPIO14", "TX pin name, as known to periph.io's gpioreg")
	rxPinName := flag.String("rx", "GPIO15", "RX pin name, as known to periph.io's gpioreg")
	flag.Parse()

	ref, err := serial.OpenPort(&serial.Config{
		Name:        *device,
		Baud:        int(*baud),
		ReadTimeout: time.Second,
	})
	if err != nil {
		return fmt.Errorf("open reference port %s: %w", *device, err)
	}
	defer ref.Close()

	txPin := gpioreg.ByName(*txPinName)
	rxPin := gpioreg.ByName(*rxPinName)
	if txPin == nil || rxPin == nil {
		return fmt.Errorf("unknown GPIO pin name %q / %q", *txPinName, *rxPinName)
	}

	engine, err := uart.NewEngine(uart.Config{Baud: uart.Baud(*baud), CPUHz: 16_000_000})
	if err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}
	port, err := linux.Open(engine, txPin, rxPin)
	if err != nil {
		return fmt.Errorf("open GPIO port: %w", err)
	}
	defer port.Close()

	scenarios := []struct {
		name string
		run  func() error
	}{
		{"loopback-256", func() error { return loopback256(ref, engine) }},
		{"overflow", func() error { return overflow(ref, engine) }},
	}

	failed := false
	for _, s := range scenarios {
		if err := s.run(); err != nil {
			log.Printf("FAIL %s: %v", s.name, err)
			failed = true
			continue
		}
		log.Printf("PASS %s", s.name)
	}
	if failed {
		return fmt.Errorf("one or more scenarios failed")
	}
	return nil
}

// loopback256 is spec.md §8's 256-byte round-trip: bytes 0x00..0xFF
// sent out the engine's TX buffer must arrive, in order, on the
// reference serial port.
func loopback256(ref *serial.Port, engine *uart.Engine) error {
	want := make([]byte, 256)
	for i := range want {
		want[i] = byte(i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sent := 0; sent < len(want); {
		n, err := engine.SendData(want[sent:])
		sent += n
		if err != nil && err != uart.ErrFull {
			return fmt.Errorf("SendData: %w", err)
		}
		if sent < len(want) {
			if time.Now().After(deadline) {
				return fmt.Errorf("SendData: only %d/%d bytes accepted", sent, len(want))
			}
			time.Sleep(time.Millisecond)
		}
	}
	got := make([]byte, len(want))
	if _, err := readFull(ref, got, 2*time.Second); err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("mismatch: got %x, want %x", got, want)
	}
	return nil
}

// overflow is spec.md §8's overflow scenario: RX_BUFFER_SIZE+3 bytes
// sent with no consumer must set Overflow, and the queue must still
// deliver correctly once drained and cleared.
func overflow(ref *serial.Port, engine *uart.Engine) error {
	n := uart.DefaultBufferSize + 3
	burst := make([]byte, n)
	for i := range burst {
		burst[i] = byte(i)
	}
	if _, err := ref.Write(burst); err != nil {
		return fmt.Errorf("write burst: %w", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for engine.DataPending() < uart.DefaultBufferSize && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !engine.Overflow() {
		return fmt.Errorf("Overflow() = false after a %d-byte burst into a %d-byte buffer", n, uart.DefaultBufferSize)
	}
	for engine.DataPending() > 0 {
		if _, ok := engine.GetChar(); !ok {
			break
		}
	}
	engine.ClearOverflow()

	probe := []byte{0xAA}
	if _, err := ref.Write(probe); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	deadline = time.Now().Add(time.Second)
	for engine.DataPending() == 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("post-overflow byte not received")
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := engine.GetChar()
	if got != probe[0] {
		return fmt.Errorf("post-overflow byte = %#02x, want %#02x", got, probe[0])
	}
	return nil
}

func readFull(ref *serial.Port, buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	n := 0
	for n < len(buf) {
		if time.Now().After(deadline) {
			return n, fmt.Errorf("timed out after %d/%d bytes", n, len(buf))
		}
		m, err := ref.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}
