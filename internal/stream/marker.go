package stream

import "strings"

const (
	// DefaultMarkerOpen and DefaultMarkerClose delimit hidden reasoning inside
	// the visible token stream.
	DefaultMarkerOpen  = "<thinking>"
	DefaultMarkerClose = "</thinking>"

	// DefaultLookahead is how many bytes to buffer before deciding the stream
	// carries no opening delimiter. Must exceed len(DefaultMarkerOpen).
	DefaultLookahead = 20
)

// Splitter incrementally separates a chunked character stream into visible
// text and the hidden text between a marker pair. Delimiters may arrive split
// across any number of chunks. Visible text returned by Feed is final: it is
// never retracted or returned twice.
type Splitter struct {
	open      string
	close     string
	lookahead int

	prefix   strings.Builder // undecided leading bytes, capped at lookahead
	hidden   strings.Builder // everything from the open delimiter onward
	text     string          // finalized hidden text, set once the pair closes
	decided  bool            // prefix buffering finished
	inMarker bool
}

// NewSplitter returns a Splitter for the given delimiter pair. A lookahead
// smaller than the open delimiter could never match a straddled delimiter,
// so it is raised to len(open).
func NewSplitter(open, close string, lookahead int) *Splitter {
	if open == "" {
		open = DefaultMarkerOpen
	}
	if close == "" {
		close = DefaultMarkerClose
	}
	if lookahead < len(open) {
		lookahead = len(open)
	}
	return &Splitter{open: open, close: close, lookahead: lookahead}
}

// Feed consumes the next chunk and returns whatever visible text is now
// known to lie outside the marker pair. Early calls may return "" while the
// splitter is still deciding whether a delimiter is forming.
func (s *Splitter) Feed(chunk string) string {
	if chunk == "" {
		return ""
	}

	if !s.decided {
		s.prefix.WriteString(chunk)
		if s.prefix.Len() < s.lookahead {
			return ""
		}
		return s.decide()
	}

	if s.inMarker {
		s.hidden.WriteString(chunk)
		return s.tryClose()
	}

	// Pass-through: no buffering after the decision is made.
	return chunk
}

// decide resolves the initial buffering phase once lookahead bytes are
// available (or the stream ended).
func (s *Splitter) decide() string {
	buf := s.prefix.String()
	s.prefix.Reset()
	s.decided = true

	at := strings.Index(buf, s.open)
	if at < 0 {
		return buf
	}

	s.inMarker = true
	s.hidden.WriteString(buf[at:])
	return buf[:at] + s.tryClose()
}

// tryClose checks the hidden buffer for the closing delimiter. If found, the
// last complete pair becomes the hidden text and everything after the close
// is returned as visible.
func (s *Splitter) tryClose() string {
	buf := s.hidden.String()
	end := strings.LastIndex(buf, s.close)
	if end < 0 {
		return ""
	}

	inner := buf[:end]
	if at := strings.LastIndex(inner, s.open); at >= 0 {
		s.text = inner[at+len(s.open):]
	}
	s.inMarker = false
	s.hidden.Reset()
	return buf[end+len(s.close):]
}

// Close ends the stream and returns any remaining visible text. A prefix
// still being buffered is flushed verbatim; an unterminated marker is dropped
// and never surfaced.
func (s *Splitter) Close() string {
	if !s.decided {
		return s.decide()
	}
	if s.inMarker {
		s.hidden.Reset()
		s.inMarker = false
	}
	return ""
}

// Hidden returns the finalized hidden text, or "" if no complete marker pair
// was observed.
func (s *Splitter) Hidden() string { return s.text }

// Reset clears all buffers and modes so the splitter can serve a new session.
func (s *Splitter) Reset() {
	s.prefix.Reset()
	s.hidden.Reset()
	s.text = ""
	s.decided = false
	s.inMarker = false
}
