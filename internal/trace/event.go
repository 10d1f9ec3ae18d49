package trace

import (
	"fmt"
	"time"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Op is the direction of an access.
type Op uint8

const (
	OpRead  Op = 0
	OpWrite Op = 1
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Kind is the primitive an access went through.
type Kind uint8

const (
	KindMMIO   Kind = 0
	KindSystem Kind = 1
)

// Header starts every trace file.
type Header struct {
	// Session is a random UUID naming the run that wrote the trace.
	Session string    `cbor:"1,keyasint"`
	Start   time.Time `cbor:"2,keyasint"`
	Backend string    `cbor:"3,keyasint,omitempty"`
	Catalog string    `cbor:"4,keyasint,omitempty"`
}

// Event is one primitive access.
type Event struct {
	Seq      uint64    `cbor:"1,keyasint"`
	Time     time.Time `cbor:"2,keyasint"`
	Op       Op        `cbor:"3,keyasint"`
	Kind     Kind      `cbor:"4,keyasint"`
	Addr     uint64    `cbor:"5,keyasint,omitempty"`
	ID       uint32    `cbor:"6,keyasint,omitempty"`
	Width    uint8     `cbor:"7,keyasint"`
	Value    uint64    `cbor:"8,keyasint"`
	Register string    `cbor:"9,keyasint,omitempty"`
}

// Where returns the address or system register the access went to.
func (e Event) Where() string {
	if e.Kind == KindSystem {
		return reg.SysRegID(e.ID).String()
	}
	return fmt.Sprintf("%#x", e.Addr)
}

func (e Event) String() string {
	where := e.Where()
	if e.Register != "" {
		where = e.Register + "@" + where
	}
	return fmt.Sprintf("#%d %-5s %s %s = %#x", e.Seq, e.Op, reg.Width(e.Width), where, e.Value)
}
