package ipc

import "bytes"

// lineBuffer splits a byte stream into newline-terminated messages and keeps
// the trailing partial line between reads. Lines longer than max are dropped
// up to their terminating newline.
type lineBuffer struct {
	buf        []byte
	max        int
	discarding bool
	dropped    int
}

func newLineBuffer(max int) *lineBuffer {
	return &lineBuffer{max: max}
}

// Feed appends p and returns every line it completes, without the newline.
// Blank lines are skipped.
func (b *lineBuffer) Feed(p []byte) [][]byte {
	var lines [][]byte
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if !b.discarding {
				b.buf = append(b.buf, p...)
				if b.tooLong(len(b.buf)) {
					b.drop()
				}
			}
			return lines
		}

		segment := p[:i]
		p = p[i+1:]
		if b.discarding {
			b.discarding = false
			continue
		}
		if b.tooLong(len(b.buf) + len(segment)) {
			b.buf = b.buf[:0]
			b.dropped++
			continue
		}
		line := make([]byte, 0, len(b.buf)+len(segment))
		line = append(line, b.buf...)
		line = append(line, segment...)
		b.buf = b.buf[:0]
		if line = trimLine(line); line != nil {
			lines = append(lines, line)
		}
	}
	return lines
}

// Flush returns whatever is buffered as a final message, if it is not blank.
func (b *lineBuffer) Flush() ([]byte, bool) {
	if b.discarding {
		b.discarding = false
		return nil, false
	}
	if len(b.buf) == 0 {
		return nil, false
	}
	line := trimLine(append([]byte(nil), b.buf...))
	b.buf = b.buf[:0]
	return line, line != nil
}

// Dropped returns the number of oversized messages discarded since the last call.
func (b *lineBuffer) Dropped() int {
	n := b.dropped
	b.dropped = 0
	return n
}

// Pending is the number of buffered bytes of an incomplete line.
func (b *lineBuffer) Pending() int { return len(b.buf) }

func (b *lineBuffer) tooLong(n int) bool {
	return b.max > 0 && n > b.max
}

func (b *lineBuffer) drop() {
	b.buf = b.buf[:0]
	b.discarding = true
	b.dropped++
}

func trimLine(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}
	return line
}
