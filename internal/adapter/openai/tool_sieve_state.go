package openai

import (
	"strings"

	"ds2api/internal/util"
)

// toolStreamSieveState filters embedded tool-call JSON out of a live text
// stream. Plain text is forwarded immediately; a brace or code-fence marker
// opens a capture, and the captured span is later resolved to a tool-call
// event, released verbatim, or dropped, depending on how it parses.
type toolStreamSieveState struct {
	pending strings.Builder
	capture strings.Builder

	capturing bool

	// brace/string scan cursor, resumed across feeds
	scanned  int
	depth    int
	inStr    bool
	strQuote byte
	escaped  bool
	badQuote bool
	needLead bool

	// fence capture phases
	fenced         bool
	fenceTagDone   bool
	fenceDecided   bool
	fenceCommitted bool
	fenceBodyStart int

	// oversize-abandon drain: the tail of a dropped span is swallowed
	// until the span closes
	draining    bool
	drainFenced bool
	drainHold   string

	// incremental tool-call delta emission
	disableDeltas  bool
	toolNameSent   bool
	toolName       string
	toolArgsStart  int
	toolArgsSent   int
	toolArgsString bool
	toolArgsDone   bool
}

type toolStreamEvent struct {
	Content        string
	ToolCalls      []util.ParsedToolCall
	ToolCallDeltas []toolCallDelta
}

type toolCallDelta struct {
	Index     int
	Name      string
	Arguments string

	// ArgsDone marks the fragment that completes the call's arguments, so
	// consumers know a later full re-emit for this index would duplicate.
	ArgsDone bool
}

const toolSieveCaptureLimit = 8 * 1024
const toolSieveFenceTagLimit = 64

func (s *toolStreamSieveState) startCapture(text string, fenced bool) {
	s.capture.WriteString(text)
	s.capturing = true
	s.scanned = 0
	s.depth = 0
	s.inStr = false
	s.strQuote = 0
	s.escaped = false
	s.badQuote = false
	s.needLead = !fenced
	s.fenced = fenced
	s.fenceTagDone = false
	s.fenceDecided = false
	s.fenceCommitted = false
	s.fenceBodyStart = -1
	s.resetIncrementalToolState()
}

func (s *toolStreamSieveState) endCapture() {
	s.capture.Reset()
	s.capturing = false
	s.resetIncrementalToolState()
}

func (s *toolStreamSieveState) resetIncrementalToolState() {
	s.disableDeltas = false
	s.toolNameSent = false
	s.toolName = ""
	s.toolArgsStart = -1
	s.toolArgsSent = -1
	s.toolArgsString = false
	s.toolArgsDone = false
}

// incrementalDeltasAllowed reports whether speculative tool-call deltas may
// be emitted for the current capture. Fenced captures stay silent until the
// fence is known to wrap a JSON candidate.
func (s *toolStreamSieveState) incrementalDeltasAllowed() bool {
	return !s.fenced || s.fenceCommitted
}
