// Package codec encodes session payloads before they are handed to a
// DocumentStore. JSON keeps stored rows readable; CBOR is smaller and
// deterministic, which keeps byte-level diffs between versions minimal.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Name identifies a payload encoding.
type Name string

const (
	// JSON is the default encoding.
	JSON Name = "json"
	// CBOR uses RFC 8949 core deterministic encoding.
	CBOR Name = "cbor"
)

// Codec marshals session values to document payloads and back.
type Codec interface {
	Name() Name
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// New returns the codec registered under name. An empty name selects JSON.
func New(name Name) (Codec, error) {
	switch name {
	case "", JSON:
		return jsonCodec{}, nil
	case CBOR:
		return cborCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Names lists the supported encodings.
func Names() []Name { return []Name{JSON, CBOR} }

type jsonCodec struct{}

func (jsonCodec) Name() Name                         { return JSON }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	// Unix seconds would drop the sub-second part of UpdatedAt.
	encOptions.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

func (cborCodec) Name() Name                         { return CBOR }
func (cborCodec) Marshal(v any) ([]byte, error)      { return encMode.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }
