package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/journal"
	"collabcanvas/internal/session"
)

type fakeResponder struct {
	texts    [][]byte
	binaries [][]byte
	closed   bool
}

func (f *fakeResponder) SendText(data []byte)   { f.texts = append(f.texts, data) }
func (f *fakeResponder) SendBinary(data []byte) { f.binaries = append(f.binaries, data) }
func (f *fakeResponder) Close()                 { f.closed = true }

func (f *fakeResponder) last(t *testing.T) map[string]any {
	t.Helper()
	require.NotEmpty(t, f.texts)
	var out map[string]any
	require.NoError(t, json.Unmarshal(f.texts[len(f.texts)-1], &out))
	return out
}

type fakeJournal struct {
	events []journal.Event
}

func (f *fakeJournal) Record(ev journal.Event) { f.events = append(f.events, ev) }

func (f *fakeJournal) kinds() []journal.Kind {
	var out []journal.Kind
	for _, ev := range f.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	registry   *session.Registry
	compositor *canvas.Compositor
	journal    *fakeJournal
	machine    *Machine
}

func newFixture() *fixture {
	logger, _ := test.NewNullLogger()
	f := &fixture{
		registry:   session.NewRegistry(),
		compositor: canvas.NewCompositor(),
		journal:    &fakeJournal{},
	}
	f.machine = NewMachine(f.registry, f.compositor, WithJournal(f.journal), WithLogger(logger))
	return f
}

func (f *fixture) connect(id session.ID) *fakeResponder {
	r := &fakeResponder{}
	f.machine.Connect(id, r)
	return r
}

func (f *fixture) painter(t *testing.T, id session.ID) *fakeResponder {
	t.Helper()
	r := f.connect(id)
	f.machine.Text(id, []byte(`{"msg":"?","?":"painter"}`))
	require.False(t, r.closed)
	return r
}

func TestConnectGreets(t *testing.T) {
	f := newFixture()
	r := f.connect(1)

	require.Len(t, r.texts, 1)
	assert.Equal(t, Greeting(), r.texts[0])
	s, ok := f.registry.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.Unknown, s.Role)
}

func TestDeclarePainter(t *testing.T) {
	f := newFixture()
	r := f.connect(1)
	f.machine.Text(1, []byte(`{"msg":"?","?":"painter","name":"Ada","url":"https://example.org"}`))

	assert.Equal(t, SizeReply(), r.texts[len(r.texts)-1])
	assert.Equal(t, 1, f.compositor.Len())
	s, _ := f.registry.Get(1)
	assert.Equal(t, session.Painter, s.Role)
	assert.Equal(t, "Ada", s.Name)
	assert.Equal(t, "https://example.org", s.URL)
	assert.Equal(t, []journal.Kind{journal.KindConnect, journal.KindJoin}, f.journal.kinds())
}

func TestDeclarePainterMetadataDefaults(t *testing.T) {
	f := newFixture()
	f.connect(1)
	f.machine.Text(1, []byte(`{"msg":"?","?":"painter","name":["not","a","string"]}`))

	s, _ := f.registry.Get(1)
	assert.Equal(t, "", s.Name)
	assert.Equal(t, "", s.URL)
	assert.Zero(t, s.Naughty)
}

func TestDeclareCanvasTwice(t *testing.T) {
	f := newFixture()
	r := f.connect(1)
	f.machine.Text(1, []byte(`{"msg":"?","?":"canvas"}`))
	f.machine.Text(1, []byte(`{"msg":"?","?":"canvas"}`))

	require.Len(t, r.texts, 3)
	assert.Equal(t, SizeReply(), r.texts[1])
	assert.Equal(t, SizeReply(), r.texts[2])
	s, _ := f.registry.Get(1)
	assert.Equal(t, session.Canvas, s.Role)
	assert.Zero(t, s.Naughty)
	assert.Equal(t, 0, f.compositor.Len())
}

func TestRedeclarePainterIsFatal(t *testing.T) {
	f := newFixture()
	r := f.painter(t, 1)
	f.machine.Text(1, []byte(`{"msg":"?","?":"painter"}`))

	assert.True(t, r.closed)
	_, ok := f.registry.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, f.compositor.Len())
}

func TestCanvasFullIsFatal(t *testing.T) {
	f := newFixture()
	for id := session.ID(0); id < canvas.MaxPainters; id++ {
		f.painter(t, id)
	}
	r := f.connect(canvas.MaxPainters)
	f.machine.Text(canvas.MaxPainters, []byte(`{"msg":"?","?":"painter"}`))

	assert.True(t, r.closed)
	_, ok := f.registry.Get(canvas.MaxPainters)
	assert.False(t, ok)
	assert.Equal(t, canvas.MaxPainters, f.compositor.Len())
	assert.Equal(t, journal.KindReject, f.journal.events[len(f.journal.events)-1].Kind)
}

func TestViolations(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"bad role", `{"msg":"?","?":"viewer"}`, "viewer is not a valid ?. Should be painter or canvas"},
		{"missing role", `{"msg":"?"}`, "Expected field ?"},
		{"role not a string", `{"msg":"?","?":1}`, "Expected field ?"},
		{"unknown msg", `{"msg":"hello"}`, "Unknown message: hello"},
		{"missing msg", `{"hello":"world"}`, "Invalid message"},
		{"msg not a string", `{"msg":3}`, "Invalid message"},
		{"unparseable", `{{{`, "(Cannot parse)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			r := f.connect(1)
			f.machine.Text(1, []byte(tc.text))

			out := r.last(t)
			assert.Equal(t, Error, out["msg"])
			assert.Contains(t, out["error"], tc.want)
			assert.Equal(t, float64(1), out["naughty"])
			assert.False(t, r.closed)
		})
	}
}

func TestEscalationLadder(t *testing.T) {
	f := newFixture()
	r := f.painter(t, 1)
	f.painter(t, 2)
	greetingAndSize := len(r.texts)

	for i := 1; i < NaughtyLimit; i++ {
		f.machine.Text(1, []byte(`{"msg":"nope"}`))
		out := r.last(t)
		require.Equal(t, float64(i), out["naughty"])
		require.NotContains(t, out["error"], FinalWarningPrefix)
		require.False(t, r.closed)
	}

	f.machine.Text(1, []byte(`{"msg":"nope"}`))
	out := r.last(t)
	assert.Equal(t, float64(NaughtyLimit), out["naughty"])
	assert.Equal(t, FinalWarningPrefix+"Unknown message: nope", out["error"])
	assert.False(t, r.closed)
	assert.Len(t, r.texts, greetingAndSize+NaughtyLimit)

	f.machine.Text(1, []byte(`{"msg":"nope"}`))
	assert.True(t, r.closed)
	assert.Len(t, r.texts, greetingAndSize+NaughtyLimit, "no message on disconnect")
	_, ok := f.registry.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, f.compositor.Len())
	assert.Equal(t, journal.KindKick, f.journal.events[len(f.journal.events)-1].Kind)
}

func TestEscalationLadderBinary(t *testing.T) {
	f := newFixture()
	r := f.painter(t, 1)
	f.painter(t, 2)
	short := bytes.Repeat([]byte{0x7f}, canvas.TileBytes-1)

	for i := 1; i <= NaughtyLimit; i++ {
		f.machine.Binary(1, short)
		out := r.last(t)
		require.Equal(t, float64(i), out["naughty"])
		require.Contains(t, out["error"], "smaller than expected")
		require.False(t, r.closed)
	}
	assert.Contains(t, r.last(t)["error"], FinalWarningPrefix)
	assert.Equal(t, 2, f.compositor.Len())

	f.machine.Binary(1, short)
	assert.True(t, r.closed)
	_, ok := f.registry.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, f.compositor.Len())
	assert.Error(t, f.compositor.Update(1, make([]byte, canvas.TileBytes)), "slot is gone")
	assert.NoError(t, f.compositor.Update(2, make([]byte, canvas.TileBytes)))
	assert.Equal(t, journal.KindKick, f.journal.events[len(f.journal.events)-1].Kind)
}

func TestEscalate(t *testing.T) {
	s := &session.Session{}
	for i := 1; i < NaughtyLimit; i++ {
		require.Equal(t, Warn, Escalate(s), "violation %d", i)
	}
	assert.Equal(t, FinalWarn, Escalate(s))
	assert.Equal(t, Disconnect, Escalate(s))
	assert.Equal(t, uint32(NaughtyLimit+1), s.Naughty)
}

func TestRequestPixels(t *testing.T) {
	f := newFixture()
	viewer := f.connect(1)
	f.machine.Text(1, []byte(`{"msg":"?","?":"canvas"}`))

	f.machine.Text(1, []byte(`{"msg":"p"}`))
	assert.Empty(t, viewer.binaries, "no painters, no frame")

	f.painter(t, 2)
	f.machine.Binary(2, bytes.Repeat([]byte{0xff}, canvas.TileBytes))
	f.machine.Text(1, []byte(`{"msg":"p"}`))

	require.Len(t, viewer.binaries, 1)
	frame := viewer.binaries[0]
	assert.Equal(t, uint16(40), binary.BigEndian.Uint16(frame))
	assert.Equal(t, bytes.Repeat([]byte{0xff}, canvas.TileBytes), frame[2:])
}

func TestBinaryWrongSizeIsViolation(t *testing.T) {
	f := newFixture()
	r := f.painter(t, 1)

	f.machine.Binary(1, make([]byte, canvas.TileBytes-1))
	out := r.last(t)
	assert.Equal(t, Error, out["msg"])
	assert.Contains(t, out["error"], "smaller")
	s, _ := f.registry.Get(1)
	assert.Equal(t, uint32(1), s.Naughty)
}

func TestBinaryFromCanvasIsNotCounted(t *testing.T) {
	f := newFixture()
	r := f.connect(1)
	f.machine.Text(1, []byte(`{"msg":"?","?":"canvas"}`))
	sent := len(r.texts)

	f.machine.Binary(1, make([]byte, canvas.TileBytes))
	assert.Len(t, r.texts, sent)
	s, _ := f.registry.Get(1)
	assert.Zero(t, s.Naughty)
}

func TestDisconnectCleansUp(t *testing.T) {
	f := newFixture()
	f.painter(t, 1)
	f.machine.Disconnect(1)

	_, ok := f.registry.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, f.compositor.Len())

	// a second disconnect for the same id is harmless
	f.machine.Disconnect(1)
	assert.Equal(t, []journal.Kind{journal.KindConnect, journal.KindJoin, journal.KindLeave}, f.journal.kinds())
}

func TestUnknownClientIgnored(t *testing.T) {
	f := newFixture()
	f.machine.Text(99, []byte(`{"msg":"p"}`))
	f.machine.Binary(99, nil)
	assert.Equal(t, 0, f.registry.Len())
}

func ExampleWarning() {
	fmt.Println(string(Warning("Unknown message: x", 2, false)))
	// Output: {"msg":"error","error":"Unknown message: x","naughty":2}
}
