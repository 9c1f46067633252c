package uart

import "sync/atomic"

// rxSubstate is the RX half of spec.md §3's ConnectionState union.
// Overflow is tracked on the RX ringBuffer itself (§4.2 sets it at
// the point of the failed append) rather than duplicated here.
type rxSubstate uint32

const (
	rxIdle rxSubstate = iota
	rxReceivedStart
	rxReceiving
)

// txSubstate is the TX half of the union.
type txSubstate uint32

const (
	txIdle txSubstate = iota
	txSentStart
	txSending
	txLocked
)

const (
	stateInitialisedBit = 1 << 0

	rxSubShift = 1
	rxSubMask  = uint32(0b11) << rxSubShift

	txSubShift = 3
	txSubMask  = uint32(0b111) << txSubShift
)

// connState packs the initialised flag and the RX/TX substates into a
// single machine word, per spec.md §3's "represented as a bitfield so
// RX and TX substates coexist" and §5's requirement that foreground
// reads of it be atomic. All mutation happens from ISR context
// (Engine.mu held); foreground only reads.
type connState struct {
	v atomic.Uint32
}

func (s *connState) initialised() bool {
	return s.v.Load()&stateInitialisedBit != 0
}

func (s *connState) setInitialised(b bool) {
	s.update(func(raw uint32) uint32 {
		if b {
			return raw | stateInitialisedBit
		}
		return raw &^ stateInitialisedBit
	})
}

func (s *connState) rx() rxSubstate {
	return rxSubstate((s.v.Load() & rxSubMask) >> rxSubShift)
}

func (s *connState) setRX(rx rxSubstate) {
	s.update(func(raw uint32) uint32 {
		return raw&^rxSubMask | (uint32(rx)<<rxSubShift)&rxSubMask
	})
}

func (s *connState) tx() txSubstate {
	return txSubstate((s.v.Load() & txSubMask) >> txSubShift)
}

func (s *connState) setTX(tx txSubstate) {
	s.update(func(raw uint32) uint32 {
		return raw&^txSubMask | (uint32(tx)<<txSubShift)&txSubMask
	})
}

func (s *connState) update(f func(uint32) uint32) {
	for {
		old := s.v.Load()
		if s.v.CompareAndSwap(old, f(old)) {
			return
		}
	}
}
