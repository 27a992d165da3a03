package wire

// Location is a position marker that can be used to seek back, expressed
// in absolute terms so it survives buffer compaction.
type Location struct {
	AbsolutePos uint64
}

// Cursor tracks a position within a borrowed buffer slice. It supports both
// the mmap/whole-buffer use case (BaseOffset 0, MinValid 0) and a streaming
// use case where the buffer grows and its consumed prefix is periodically
// compacted away: BaseOffset records how far the live slice has shifted
// from position zero, and MinValid is the watermark below which positions
// have been freed and can no longer be sought to.
type Cursor struct {
	buf      []byte
	pos      int
	base     uint64
	minValid int
}

// NewCursor creates a cursor at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// NewCursorWithContext creates a cursor for the streaming use case.
func NewCursorWithContext(buf []byte, startPos int, baseOffset uint64, minValid int) *Cursor {
	return &Cursor{buf: buf, pos: startPos, base: baseOffset, minValid: minValid}
}

// Pos returns the position relative to the start of the underlying slice.
func (c *Cursor) Pos() int { return c.pos }

// AbsolutePos returns the position in absolute, compaction-independent terms.
func (c *Cursor) AbsolutePos() uint64 { return c.base + uint64(c.pos) }

// Remaining returns the number of unread bytes in the buffer.
func (c *Cursor) Remaining() int {
	if c.pos >= len(c.buf) {
		return 0
	}
	return len(c.buf) - c.pos
}

// Mark returns a Location that can later be restored with Seek.
func (c *Cursor) Mark() Location { return Location{AbsolutePos: c.AbsolutePos()} }

// SetPos moves to a position relative to the start of the underlying slice.
func (c *Cursor) SetPos(pos int) error {
	if pos < c.minValid {
		return errPositionFreed()
	}
	if pos > len(c.buf) {
		return errOutOfBounds()
	}
	c.pos = pos
	return nil
}

// Seek restores a previously marked Location.
func (c *Cursor) Seek(loc Location) error {
	if loc.AbsolutePos < c.base+uint64(c.minValid) {
		return errPositionFreed()
	}
	if loc.AbsolutePos < c.base {
		return errSeekBeforeBuffer()
	}
	rel := loc.AbsolutePos - c.base
	if rel > uint64(len(c.buf)) {
		return errSeekAfterBuffer()
	}
	c.pos = int(rel)
	return nil
}

// Need reports whether n more bytes are available from the current
// position, returning Pending(missing) if not. Framing layers call this
// before ReadBytes to decide whether to wait for more input.
func (c *Cursor) Need(n int) error {
	if c.pos < c.minValid {
		return errPositionFreed()
	}
	if c.pos+n > len(c.buf) {
		return errPending(c.pos + n - len(c.buf))
	}
	return nil
}

// ReadByte consumes and returns the next byte.
func (c *Cursor) ReadByte() (byte, error) {
	if err := c.Need(1); err != nil {
		return 0, err
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (c *Cursor) PeekByte() (byte, error) {
	if err := c.Need(1); err != nil {
		return 0, err
	}
	return c.buf[c.pos], nil
}

// ReadBytes consumes and returns the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.Need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// SkipBytes consumes the next n bytes without returning them.
func (c *Cursor) SkipBytes(n int) error {
	if err := c.Need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// AsSlice returns the unread tail of the buffer.
func (c *Cursor) AsSlice() []byte { return c.buf[c.pos:] }

// FullSlice returns the entire underlying buffer, consumed and unconsumed.
func (c *Cursor) FullSlice() []byte { return c.buf }

// StreamBuffer manages a growable byte buffer with periodic compaction, for
// decoders fed by a transport that delivers bytes in chunks rather than as
// one complete frame.
type StreamBuffer struct {
	Data       []byte
	BaseOffset uint64
	ValidStart int
}

// NewStreamBuffer returns an empty StreamBuffer.
func NewStreamBuffer() *StreamBuffer { return &StreamBuffer{} }

// Extend appends bytes to the buffer.
func (s *StreamBuffer) Extend(b []byte) { s.Data = append(s.Data, b...) }

// Cursor returns a Cursor over the buffer's unconsumed tail.
func (s *StreamBuffer) Cursor() *Cursor {
	return NewCursorWithContext(s.Data[s.ValidStart:], 0, s.BaseOffset+uint64(s.ValidStart), 0)
}

// MarkConsumed advances ValidStart by n bytes, making everything below it
// eligible for reclamation on the next Compact.
func (s *StreamBuffer) MarkConsumed(n int) { s.ValidStart += n }

// Compact drops the consumed prefix and returns the number of bytes freed.
func (s *StreamBuffer) Compact() int {
	freed := s.ValidStart
	if freed > 0 {
		s.Data = append(s.Data[:0], s.Data[s.ValidStart:]...)
		s.BaseOffset += uint64(freed)
		s.ValidStart = 0
	}
	return freed
}

// Len returns the number of unconsumed bytes.
func (s *StreamBuffer) Len() int { return len(s.Data) - s.ValidStart }

// IsEmpty reports whether there are no unconsumed bytes.
func (s *StreamBuffer) IsEmpty() bool { return s.Len() == 0 }
