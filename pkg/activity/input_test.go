package activity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingEmitter struct {
	mu    sync.Mutex
	kinds []Kind
}

func (r *recordingEmitter) Emit(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, k)
}

func (r *recordingEmitter) get() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

func TestInputDecoder_HandleData(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []Kind
	}{
		{
			name:   "plain typing",
			chunks: []string{"hello"},
			want:   []Kind{KeyPress},
		},
		{
			name:   "lone escape key",
			chunks: []string{"\x1b"},
			want:   []Kind{KeyPress},
		},
		{
			name:   "arrow key",
			chunks: []string{"\x1b[A"},
			want:   []Kind{KeyPress},
		},
		{
			name:   "alt key",
			chunks: []string{"\x1bx"},
			want:   []Kind{KeyPress},
		},
		{
			name:   "sgr press then release",
			chunks: []string{"\x1b[<0;10;5M\x1b[<0;10;5m"},
			want:   []Kind{PointerDown, Click},
		},
		{
			name:   "sgr motion",
			chunks: []string{"\x1b[<35;12;7M"},
			want:   []Kind{PointerMove},
		},
		{
			name:   "sgr wheel",
			chunks: []string{"\x1b[<64;1;1M"},
			want:   []Kind{Scroll},
		},
		{
			name:   "sgr split across reads",
			chunks: []string{"\x1b[<0;1", "0;5M"},
			want:   []Kind{PointerDown},
		},
		{
			name:   "x10 press and release",
			chunks: []string{"\x1b[M !!", "\x1b[M#!!"},
			want:   []Kind{PointerDown, Click},
		},
		{
			name:   "x10 wheel",
			chunks: []string{"\x1b[M`!!"},
			want:   []Kind{Scroll},
		},
		{
			name:   "focus reports are ignored",
			chunks: []string{"\x1b[I\x1b[O"},
			want:   nil,
		},
		{
			name:   "mouse then typing",
			chunks: []string{"\x1b[<0;1;1Mab"},
			want:   []Kind{PointerDown, KeyPress},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingEmitter{}
			d := NewInputDecoder(rec)
			for _, c := range tt.chunks {
				d.HandleData([]byte(c))
			}
			assert.Equal(t, tt.want, rec.get())
		})
	}
}

func TestInputDecoder_UnterminatedSequenceIsBounded(t *testing.T) {
	rec := &recordingEmitter{}
	d := NewInputDecoder(rec)

	seq := "\x1b[<"
	for i := 0; i < maxPending; i++ {
		seq += "1"
	}
	d.HandleData([]byte(seq))

	assert.Equal(t, []Kind{KeyPress}, rec.get())
	assert.Empty(t, d.pending)
}

func TestInputDecoder_FeedsTracker(t *testing.T) {
	bus := NewBus()
	var got []Kind
	unsub := SubscribeAll(bus, func(k Kind) { got = append(got, k) })
	defer unsub()

	NewInputDecoder(bus).HandleData([]byte("\x1b[<64;1;1Mq"))

	assert.Equal(t, []Kind{Scroll, KeyPress}, got)
}
