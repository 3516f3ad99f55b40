package sink

import (
	"encoding/json"
	"time"

	"github.com/bft-labs/rankflow/internal/domain"
)

// Payload is the JSON form of a result:
//
//	{"keys":3,"kfs":[[[0,1],1],[[0,2],0.5],[[1,2],0.5]],...}
type Payload struct {
	Keys       int           `json:"keys"`
	Kfs        domain.Matrix `json:"kfs"`
	Seq        uint64        `json:"seq"`
	SampleRate float64       `json:"sample_rate"`
	Partial    bool          `json:"partial,omitempty"`
	Session    string        `json:"session,omitempty"`
	Backend    string        `json:"backend,omitempty"`
	At         time.Time     `json:"at"`
}

// NewPayload converts a result.
func NewPayload(r *domain.Result) Payload {
	return Payload{
		Keys:       r.Keys,
		Kfs:        r.Kfs,
		Seq:        r.Seq,
		SampleRate: r.SampleRate,
		Partial:    r.Partial,
		Session:    r.SessionID,
		Backend:    r.Backend,
		At:         r.At,
	}
}

// Encode marshals r as a single JSON object without a trailing newline.
func Encode(r *domain.Result) ([]byte, error) {
	return json.Marshal(NewPayload(r))
}
