package engine

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkSplitter routes streamed model text into visible text and
// reasoning, using <think> tags as the boundary. Tags may be split
// across chunks, so a possible partial tag is held back until the next
// write resolves it.
type thinkSplitter struct {
	buf     string
	inThink bool
}

func newThinkSplitter() *thinkSplitter {
	return &thinkSplitter{}
}

// Write consumes one delta and returns the text and reasoning it can
// emit so far.
func (s *thinkSplitter) Write(delta string) (text, reasoning string) {
	s.buf += delta
	var textOut, reasonOut strings.Builder
	for {
		tag := thinkOpen
		if s.inThink {
			tag = thinkClose
		}
		if i := strings.Index(s.buf, tag); i >= 0 {
			if s.inThink {
				reasonOut.WriteString(s.buf[:i])
			} else {
				textOut.WriteString(s.buf[:i])
			}
			s.buf = s.buf[i+len(tag):]
			s.inThink = !s.inThink
			continue
		}
		keep := partialTagSuffix(s.buf, tag)
		emit := s.buf[:len(s.buf)-keep]
		if s.inThink {
			reasonOut.WriteString(emit)
		} else {
			textOut.WriteString(emit)
		}
		s.buf = s.buf[len(emit):]
		return textOut.String(), reasonOut.String()
	}
}

// Flush releases anything held back as a possible partial tag.
func (s *thinkSplitter) Flush() (text, reasoning string) {
	rest := s.buf
	s.buf = ""
	if rest == "" {
		return "", ""
	}
	if s.inThink {
		return "", rest
	}
	return rest, ""
}

// partialTagSuffix reports how many trailing bytes of s form a proper
// prefix of tag.
func partialTagSuffix(s, tag string) int {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
