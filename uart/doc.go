// Package uart implements a software (bit-banged) asynchronous 8-N-1
// serial port for microcontrollers that provide only a free-running
// timer with a compare-match interrupt and a pin-change interrupt.
// One periodic tick drives both RX sampling and TX emission, in full
// duplex, off a single timer.
//
// The [Engine] type holds no hardware dependency: [Engine.HandleTick]
// and [Engine.HandleEdge] are the two interrupt service routines,
// expressed as ordinary methods so they can be driven directly from
// unit tests or from a real interrupt vector, AVR or otherwise. See
// the platform/avr and platform/linux packages for the hardware glue.
package uart
