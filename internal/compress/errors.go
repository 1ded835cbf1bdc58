package compress

import "fmt"

// Kind classifies a compression failure.
type Kind int

const (
	// KindParseFailure means the summarizer answered with something that is
	// not a usable memory record.
	KindParseFailure Kind = iota + 1
	// KindTransportFailure means the summarizer could not be reached or
	// returned an error.
	KindTransportFailure
)

func (k Kind) String() string {
	switch k {
	case KindParseFailure:
		return "parse failure"
	case KindTransportFailure:
		return "transport failure"
	default:
		return "unknown failure"
	}
}

// Error reports a failed compression. The session was still recorded as
// failed and its raw log kept at RawLogPath for a manual re-run.
type Error struct {
	Kind       Kind
	Reason     string
	RawLogPath string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compression %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Remediation suggests how to re-run compression by hand.
func (e *Error) Remediation() string {
	if e.RawLogPath == "" {
		return ""
	}
	return "memex compress " + e.RawLogPath
}
