package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads a trace file.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	header  Header
}

// NewReader opens the trace file at path and reads its header.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

func newReader(src io.Reader) (*Reader, error) {
	r := &Reader{decoder: NewDecoder(src)}
	if err := r.decoder.Decode(&r.header); err != nil {
		return nil, fmt.Errorf("failed to read trace header: %w", err)
	}
	return r, nil
}

// Header returns the trace header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next event. Returns io.EOF when no more events are
// available.
func (r *Reader) Next() (Event, error) {
	var e Event
	if err := r.decoder.Decode(&e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll reads a whole trace from src.
func ReadAll(src io.Reader) (Header, []Event, error) {
	r, err := newReader(src)
	if err != nil {
		return Header{}, nil, err
	}
	var events []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.header, events, nil
		}
		if err != nil {
			return r.header, events, err
		}
		events = append(events, e)
	}
}
