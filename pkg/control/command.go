// Package control implements the command protocol the monitoring server
// speaks over the gateway's socket: a 2-byte big-endian length followed by
// that many bytes of ASCII text.
package control

// Kind enumerates every command the gateway understands. Anything else
// parses as Unknown.
type Kind uint8

const (
	Unknown Kind = iota
	Exit
	Acknowledge
	Truncate
	SetDebug
	Help
	ReadNow
	Stats
	Reset
)

func (k Kind) String() string {
	switch k {
	case Exit:
		return "exit"
	case Acknowledge:
		return "ok"
	case Truncate:
		return "truncate"
	case SetDebug:
		return "debug"
	case Help:
		return "help"
	case ReadNow:
		return "read"
	case Stats:
		return "stats"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Command is one parsed server message. Debug is only meaningful for
// SetDebug and Text keeps the raw message for Unknown.
type Command struct {
	Kind  Kind
	Debug bool
	Text  string
}

// Parse maps a message onto a Command. Matching is exact and
// case-sensitive.
func Parse(text string) Command {
	switch text {
	case "exit":
		return Command{Kind: Exit}
	case "Ok":
		return Command{Kind: Acknowledge}
	case "truncate":
		return Command{Kind: Truncate}
	case "debug 0":
		return Command{Kind: SetDebug, Debug: false}
	case "debug 1":
		return Command{Kind: SetDebug, Debug: true}
	case "help":
		return Command{Kind: Help}
	case "read":
		return Command{Kind: ReadNow}
	case "stats":
		return Command{Kind: Stats}
	case "reset":
		return Command{Kind: Reset}
	default:
		return Command{Kind: Unknown, Text: text}
	}
}

// Signal tells the gateway loop what to do after a command.
type Signal uint8

const (
	Continue Signal = iota
	Stop
	// FullDump asks the loop to log the last acquired frame, then continue.
	FullDump
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case FullDump:
		return "full-dump"
	default:
		return "unknown"
	}
}
