package flight

import (
	"bytes"
	"fmt"
)

// Feed consumes one fragment of the stream.
//
// Every row completed by the fragment is decoded and appended to the chunk
// log before Feed returns. A fragment that ends mid-row leaves the partial
// row buffered for the next call; that is never an error.
//
// Row ids are unsigned 64-bit values; a digit that would overflow one is an
// invalid hex digit error, leading zeros are not.
//
// Feed returns a *FramingError when the stream is malformed. The error is
// sticky: the response stops consuming input and every later Feed returns
// the same error.
func (r *Response) Feed(fragment []byte) error {
	if r.err != nil {
		return r.err
	}

	n := len(fragment)
	i := 0
	for i < n {
		switch r.phase {
		case PhaseReadID:
			b := fragment[i]
			r.rowStarted = true
			if b == ':' {
				r.phase = PhaseReadTag
				i++
				continue
			}
			d, ok := hexDigit(b)
			if !ok {
				return r.fail(FramingErrorInvalidHexDigit, i, b, "")
			}
			if r.pendingID>>60 != 0 {
				return r.fail(FramingErrorInvalidHexDigit, i, b, "row id exceeds 64 bits")
			}
			r.pendingID = r.pendingID<<4 | uint64(d)
			i++

		case PhaseReadTag:
			if isLengthTag(r.pendingTag) {
				next, err := r.readLength(fragment, i)
				if err != nil {
					return err
				}
				i = next
				continue
			}
			i = r.readTag(fragment, i)

		case PhaseReadBodyByDelimiter:
			idx := bytes.IndexByte(fragment[i:], '\n')
			if idx < 0 {
				r.pendingBody = append(r.pendingBody, fragment[i:]...)
				i = n
				continue
			}
			r.pendingBody = append(r.pendingBody, fragment[i:i+idx]...)
			i += idx + 1
			r.completeRow()

		case PhaseReadBodyByLength:
			need := r.expectedLength - len(r.pendingBody)
			take := min(need, n-i)
			r.pendingBody = append(r.pendingBody, fragment[i:i+take]...)
			i += take
			if len(r.pendingBody) == r.expectedLength {
				r.completeRow()
			}
		}
	}

	r.consumed += int64(n)
	return nil
}

// FeedString is Feed for string fragments.
func (r *Response) FeedString(s string) error {
	return r.Feed([]byte(s))
}

// readTag resolves the optional tag at fragment[i] and returns the index of
// the first unconsumed byte. Whether a recognized letter is a tag depends on
// the byte after it (see takesTag). When that byte has not arrived yet the
// letter is held and resolved on the next call.
func (r *Response) readTag(fragment []byte, i int) int {
	switch {
	case r.heldTag != 0:
		candidate := r.heldTag
		r.heldTag = 0
		if !takesTag(candidate, fragment[i]) {
			// The held letter was body after all.
			r.pendingBody = append(r.pendingBody, candidate)
			r.phase = PhaseReadBodyByDelimiter
			return i
		}
		r.takeTag(candidate)
		return i

	case !isTag(fragment[i]):
		r.phase = PhaseReadBodyByDelimiter
		return i

	case i+1 >= len(fragment):
		r.heldTag = fragment[i]
		return i + 1
	}

	if !takesTag(fragment[i], fragment[i+1]) {
		r.phase = PhaseReadBodyByDelimiter
		return i
	}
	r.takeTag(fragment[i])
	return i + 1
}

func (r *Response) takeTag(tag byte) {
	r.pendingTag = tag
	if isLengthTag(tag) {
		// Stay in ReadTag for the length header.
		return
	}
	r.phase = PhaseReadBodyByDelimiter
}

// readLength consumes length header bytes up to and including ','.
func (r *Response) readLength(fragment []byte, i int) (int, error) {
	for ; i < len(fragment); i++ {
		b := fragment[i]
		if b == ',' {
			i++
			if r.expectedLength == 0 {
				r.completeRow()
				return i, nil
			}
			r.phase = PhaseReadBodyByLength
			return i, nil
		}
		d, ok := hexDigit(b)
		if !ok {
			return i, r.fail(FramingErrorInvalidLength, i, b, "unrecognized framing directive")
		}
		r.expectedLength = r.expectedLength<<4 | int(d)
		if r.expectedLength > MaxRowLength {
			return i, r.fail(FramingErrorInvalidLength, i, b,
				fmt.Sprintf("declared length exceeds %d bytes", MaxRowLength))
		}
	}
	return i, nil
}

// completeRow decodes the buffered row, appends it and resets row state.
func (r *Response) completeRow() {
	chunk, fellBack := r.decodeRow(r.pendingID, r.pendingTag, r.pendingBody)
	if fellBack {
		r.fallbacks++
	}
	r.chunks = append(r.chunks, chunk)
	r.resetRow()
}

// fail poisons the response with a fatal framing error at fragment index i.
func (r *Response) fail(kind FramingErrorKind, i int, b byte, msg string) error {
	r.consumed += int64(i)
	r.err = &FramingError{
		Kind:   kind,
		Offset: r.consumed,
		Byte:   b,
		Msg:    msg,
	}
	return r.err
}

// hexDigit decodes a lowercase hex digit.
func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}
