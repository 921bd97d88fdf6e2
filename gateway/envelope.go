package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Envelope is the wire format of every structured frame.
//
//	{"name":"MESSAGE_CREATE","data":{...}}
type Envelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// LooksLikeJSON is the cheap shape test applied to inbound text: trimmed
// text delimited by {...} or [...]. Anything else is diagnostic text.
func LooksLikeJSON(text string) bool {
	t := strings.TrimSpace(text)
	n := len(t)
	if n < 2 {
		return false
	}
	return (t[0] == '{' && t[n-1] == '}') || (t[0] == '[' && t[n-1] == ']')
}

// Decode parses a JSON frame into an Envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Encode marshals an envelope for sending. data may be any JSON-encodable value.
func Encode(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return json.Marshal(Envelope{Name: name, Data: raw})
}

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent
// EncodeAll/DecodeAll calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic("gateway: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxMessageSize*16))
	if err != nil {
		panic("gateway: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress encodes a text frame for delivery as a binary frame.
func Compress(frame []byte) []byte {
	return zstdEncoder.EncodeAll(frame, nil)
}

// Decompress reverses Compress.
func Decompress(frame []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(frame, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
