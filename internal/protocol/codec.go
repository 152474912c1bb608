package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

// Encoder writes frames to w. It is safe for concurrent use; each frame
// reaches w in a single Write.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(f Frame) error {
	b, err := Marshal(f)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err = e.w.Write(b)
	return err
}

// Marshal returns the newline-terminated encoding of f.
func Marshal(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if len(b) > MaxFrameSize {
		return nil, common.ErrFrameTooLarge
	}
	return append(b, '\n'), nil
}

// Decoder reads frames from a stream. It is not safe for concurrent use.
type Decoder struct {
	s *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxFrameSize+1)
	return &Decoder{s: s}
}

// Decode returns the next valid frame. It returns io.EOF at a clean end of
// stream, common.ErrFrameTooLarge for oversized lines and an error wrapping
// common.ErrUnexpectedFrame for undecodable or invalid frames. Read errors
// from the underlying reader (deadlines included) are returned unchanged
// and are terminal.
func (d *Decoder) Decode() (Frame, error) {
	for d.s.Scan() {
		line := d.s.Bytes()
		if len(line) == 0 {
			continue
		}

		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", common.ErrUnexpectedFrame, err)
		}
		if err := f.Validate(); err != nil {
			return Frame{}, err
		}
		return f, nil
	}

	err := d.s.Err()
	switch {
	case err == nil:
		return Frame{}, io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return Frame{}, common.ErrFrameTooLarge
	default:
		return Frame{}, err
	}
}
