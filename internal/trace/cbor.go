package trace

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A trace file is a CBOR sequence: one Header map followed by one map per
// Event, all keyed by small integers. Files are only ever written by a
// Recorder, so the decoder is strict about anything a Recorder never
// produces.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		// Integer keys, shortest first: byte-identical output for equal events.
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		// Tagged epoch seconds, microsecond precision.
		Time:    cbor.TimeUnixMicro,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 4,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR decoder mode: %v", err))
	}
}

// NewEncoder creates a CBOR encoder for trace records that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a CBOR decoder for trace records that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
