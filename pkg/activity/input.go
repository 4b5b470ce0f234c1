package activity

import (
	"sync"
)

const esc = 0x1b

// maxPending bounds how many bytes of an unterminated escape sequence are kept
// between reads.
const maxPending = 64

// Emitter receives decoded signals.
type Emitter interface {
	Emit(kind Kind)
}

// InputDecoder classifies raw terminal input into interaction signals.
// Mouse reports only appear when the wrapped program enabled mouse tracking;
// the decoder never enables it itself.
type InputDecoder struct {
	mu      sync.Mutex
	emitter Emitter
	// Buffer for sequences split across reads
	pending []byte
}

// NewInputDecoder creates a decoder that emits onto e.
func NewInputDecoder(e Emitter) *InputDecoder {
	return &InputDecoder{
		emitter: e,
		pending: make([]byte, 0, maxPending),
	}
}

// HandleData decodes one chunk of input.
func (d *InputDecoder) HandleData(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := append(d.pending, data...)
	keyPressed := false
	i := 0

scan:
	for i < len(buf) {
		if buf[i] != esc {
			keyPressed = true
			i++
			continue
		}

		// A lone trailing ESC is the Escape key, not the start of a sequence.
		if i+1 == len(buf) {
			keyPressed = true
			i++
			break
		}
		if buf[i+1] != '[' {
			// Alt-modified key
			keyPressed = true
			i += 2
			continue
		}
		if i+2 == len(buf) {
			break
		}

		switch buf[i+2] {
		case '<':
			n, ok := d.decodeSGR(buf[i:])
			if !ok {
				break scan
			}
			i += n
		case 'M':
			if i+5 >= len(buf) {
				break scan
			}
			d.emitter.Emit(x10Kind(buf[i+3]))
			i += 6
		case 'I', 'O':
			// Focus in/out is not user input.
			i += 3
		default:
			n, ok := csiLength(buf[i:])
			if !ok {
				break scan
			}
			keyPressed = true
			i += n
		}
	}

	rest := buf[i:]
	if len(rest) > maxPending {
		// Not a sequence we understand; count it as typing.
		keyPressed = true
		rest = rest[:0]
	}
	d.pending = append(d.pending[:0], rest...)

	if keyPressed {
		d.emitter.Emit(KeyPress)
	}
}

// decodeSGR decodes "ESC [ < b ; x ; y (M|m)" at the start of seq. It returns
// the sequence length, or false if the sequence is incomplete.
func (d *InputDecoder) decodeSGR(seq []byte) (int, bool) {
	button := 0
	field := 0
	for j := 3; j < len(seq); j++ {
		c := seq[j]
		switch {
		case c >= '0' && c <= '9':
			if field == 0 {
				button = button*10 + int(c-'0')
			}
		case c == ';':
			field++
		case c == 'M' || c == 'm':
			d.emitter.Emit(sgrKind(button, c == 'm'))
			return j + 1, true
		default:
			// Malformed; swallow up to here as a key press.
			d.emitter.Emit(KeyPress)
			return j + 1, true
		}
	}
	return 0, false
}

func sgrKind(button int, release bool) Kind {
	switch {
	case button&64 != 0:
		return Scroll
	case button&32 != 0:
		return PointerMove
	case release:
		return Click
	default:
		return PointerDown
	}
}

func x10Kind(b byte) Kind {
	button := int(b) - 32
	switch {
	case button&64 != 0:
		return Scroll
	case button&32 != 0:
		return PointerMove
	case button&3 == 3:
		return Click
	default:
		return PointerDown
	}
}

// csiLength returns the length of a generic CSI sequence (cursor keys,
// function keys) or false if its final byte has not arrived yet.
func csiLength(seq []byte) (int, bool) {
	for j := 2; j < len(seq); j++ {
		if seq[j] >= 0x40 && seq[j] <= 0x7e {
			return j + 1, true
		}
	}
	return 0, false
}
