package control

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/NotCoffee418/elster_gateway/pkg/stats"
)

// scriptedLink returns one scripted chunk per Read call. A nil chunk
// stands for a read deadline expiring.
type scriptedLink struct {
	chunks    [][]byte
	deadlines int
}

func (l *scriptedLink) Read(p []byte) (int, error) {
	if len(l.chunks) == 0 {
		return 0, io.EOF
	}
	c := l.chunks[0]
	if c == nil {
		l.chunks = l.chunks[1:]
		return 0, os.ErrDeadlineExceeded
	}
	n := copy(p, c)
	if n < len(c) {
		l.chunks[0] = c[n:]
	} else {
		l.chunks = l.chunks[1:]
	}
	return n, nil
}

func (l *scriptedLink) SetReadDeadline(time.Time) error {
	l.deadlines++
	return nil
}

func framed(t *testing.T, text string) []byte {
	t.Helper()
	b, err := Encode(text)
	if err != nil {
		t.Fatalf("Encode(%q) err=%v", text, err)
	}
	return b
}

type fakeActions struct {
	counters  stats.Counters
	now       time.Time
	debug     bool
	truncated int
	noLog     bool
}

func (a *fakeActions) TruncateLog() error {
	if a.noLog {
		return ErrNoLogFile
	}
	a.truncated++
	return nil
}

func (a *fakeActions) SetDebug(on bool)     { a.debug = on }
func (a *fakeActions) StatsSummary() string { return a.counters.Summary(a.now) }
func (a *fakeActions) ResetStats()          { a.counters.Reset(a.now) }

func newChannel(link Link) (*Channel, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewChannel(link, logger, 3, time.Millisecond), hook
}

func TestParseIsExact(t *testing.T) {
	cases := map[string]Kind{
		"exit":     Exit,
		"Ok":       Acknowledge,
		"ok":       Unknown,
		"truncate": Truncate,
		"debug 0":  SetDebug,
		"debug 1":  SetDebug,
		"debug 2":  Unknown,
		"help":     Help,
		"read":     ReadNow,
		"stats":    Stats,
		"reset":    Reset,
		"Exit":     Unknown,
		"stats ":   Unknown,
		"":         Unknown,
	}
	for text, want := range cases {
		if got := Parse(text).Kind; got != want {
			t.Fatalf("Parse(%q)=%v want %v", text, got, want)
		}
	}
	if !Parse("debug 1").Debug || Parse("debug 0").Debug {
		t.Fatalf("debug flag not parsed")
	}
}

func TestHandleSignals(t *testing.T) {
	cases := []struct {
		text string
		want Signal
	}{
		{"exit", Stop},
		{"Ok", Continue},
		{"read", FullDump},
		{"help", Continue},
		{"whatever", Continue},
	}
	for _, tc := range cases {
		ch, _ := newChannel(&scriptedLink{chunks: [][]byte{framed(t, tc.text)}})
		sig, err := ch.Handle(&fakeActions{})
		if err != nil {
			t.Fatalf("%q: err=%v", tc.text, err)
		}
		if sig != tc.want {
			t.Fatalf("%q: signal=%v want %v", tc.text, sig, tc.want)
		}
	}
}

func TestStatsAndReset(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	a := &fakeActions{counters: stats.New(start), now: start.Add(42 * time.Second)}
	a.counters.Total, a.counters.Valid, a.counters.Short, a.counters.Checksum = 10, 7, 2, 1

	ch, hook := newChannel(&scriptedLink{chunks: [][]byte{
		framed(t, "stats"), framed(t, "reset"), framed(t, "stats"),
	}})

	if _, err := ch.Handle(a); err != nil {
		t.Fatalf("stats err=%v", err)
	}
	if got := hook.LastEntry().Message; got != "Stats Total: 10 Valid 7 Short: 2 Bad Checksum 1 Seconds: 42" {
		t.Fatalf("stats line=%q", got)
	}

	if _, err := ch.Handle(a); err != nil {
		t.Fatalf("reset err=%v", err)
	}
	a.now = a.now.Add(5 * time.Second)
	if _, err := ch.Handle(a); err != nil {
		t.Fatalf("stats err=%v", err)
	}
	if got := hook.LastEntry().Message; got != "Stats Total: 0 Valid 0 Short: 0 Bad Checksum 0 Seconds: 5" {
		t.Fatalf("stats after reset=%q", got)
	}
}

func TestDebugAndTruncate(t *testing.T) {
	a := &fakeActions{}
	ch, hook := newChannel(&scriptedLink{chunks: [][]byte{
		framed(t, "debug 1"), framed(t, "truncate"),
	}})
	ch.Handle(a)
	if !a.debug {
		t.Fatalf("debug not enabled")
	}
	ch.Handle(a)
	if a.truncated != 1 || hook.LastEntry().Message != "Truncated log file" {
		t.Fatalf("truncate not applied: %d %q", a.truncated, hook.LastEntry().Message)
	}

	a.noLog = true
	if sig := Dispatch(Command{Kind: Truncate}, a, ch.log); sig != Continue {
		t.Fatalf("signal=%v", sig)
	}
	if got := hook.LastEntry().Message; got != "Log file not truncated as it is not open" {
		t.Fatalf("message=%q", got)
	}
}

func TestUnknownIsQuoted(t *testing.T) {
	ch, hook := newChannel(&scriptedLink{chunks: [][]byte{framed(t, "exit please")}})
	if sig, _ := ch.Handle(&fakeActions{}); sig != Continue {
		t.Fatalf("signal=%v", sig)
	}
	e := hook.LastEntry()
	if e.Level != logrus.InfoLevel {
		t.Fatalf("level=%v", e.Level)
	}
	if e.Message != `Unknown message from server: "exit please"` {
		t.Fatalf("message=%q", e.Message)
	}
}

func TestPartialReadsAreRetried(t *testing.T) {
	msg := framed(t, "stats")
	link := &scriptedLink{chunks: [][]byte{msg[:3], nil, msg[3:5], nil, msg[5:]}}
	ch, _ := newChannel(link)
	text, err := ch.Read()
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if text != "stats" {
		t.Fatalf("text=%q", text)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	msg := framed(t, "truncate")
	link := &scriptedLink{chunks: [][]byte{msg[:4], nil, nil, nil, msg[4:]}}
	ch, hook := newChannel(link)
	sig, err := ch.Handle(&fakeActions{})
	if err != nil || sig != Continue {
		t.Fatalf("sig=%v err=%v", sig, err)
	}
	e := hook.LastEntry()
	if e.Level != logrus.WarnLevel || e.Message != ErrReadTimeout.Error() {
		t.Fatalf("entry=%v %q", e.Level, e.Message)
	}
}

func TestLengthTimeout(t *testing.T) {
	ch, _ := newChannel(&scriptedLink{chunks: [][]byte{{0x00}, nil, nil, nil}})
	if _, err := ch.Read(); !errors.Is(err, ErrLengthTimeout) {
		t.Fatalf("err=%v", err)
	}
}

func TestClosedLinkIsAnError(t *testing.T) {
	ch, _ := newChannel(&scriptedLink{})
	if _, err := ch.Handle(&fakeActions{}); err == nil {
		t.Fatalf("expected error on closed link")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, "meter 2 1.000 2.000"); err != nil {
		t.Fatalf("WriteMessage err=%v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte{0x00, 19}) {
		t.Fatalf("prefix=% x", buf.Bytes()[:2])
	}
	got, err := ReadMessage(&buf)
	if err != nil || got != "meter 2 1.000 2.000" {
		t.Fatalf("ReadMessage=%q err=%v", got, err)
	}
	if _, err := Encode(strings.Repeat("x", MaxMessageLen+1)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}
