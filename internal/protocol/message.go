package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"

	"collabcanvas/internal/canvas"
)

// Values of the "msg" field.
const (
	WhoAreYou    = "?"
	SendMePixels = "p"
	BufferSize   = "size"
	Error        = "error"
)

// FinalWarningPrefix marks the last warning before a client is dropped.
const FinalWarningPrefix = "FINAL WARNING "

type simpleMessage struct {
	Msg string `json:"msg"`
}

type sizeMessage struct {
	Msg string `json:"msg"`
	W   int    `json:"w"`
	H   int    `json:"h"`
}

type errorMessage struct {
	Msg     string `json:"msg"`
	Error   string `json:"error"`
	Naughty uint32 `json:"naughty"`
}

var (
	greeting    = mustMarshal(simpleMessage{Msg: WhoAreYou})
	pollRequest = mustMarshal(simpleMessage{Msg: SendMePixels})
	sizeReply   = mustMarshal(sizeMessage{Msg: BufferSize, W: canvas.TileSide, H: canvas.TileSide})
)

// Greeting asks a fresh connection what it is.
func Greeting() []byte { return greeting }

// PollRequest asks a painter for its pixels.
func PollRequest() []byte { return pollRequest }

// SizeReply tells the client the tile dimensions.
func SizeReply() []byte { return sizeReply }

// Warning tells a client what it did wrong and how many times it has done so.
func Warning(description string, naughty uint32, final bool) []byte {
	if final {
		description = FinalWarningPrefix + description
	}
	return mustMarshal(errorMessage{Msg: Error, Error: description, Naughty: naughty})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Inbound is a decoded text message from a client.
type Inbound map[string]any

// Decode parses a text frame. Clients are allowed comments and trailing
// commas; the top level must be an object (or null).
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(jsonc.ToJSON(data), &in); err != nil {
		return nil, errors.Wrap(err, "decode message failed")
	}
	return in, nil
}

// String returns the field as a string. Missing and non-string fields report
// false.
func (in Inbound) String(key string) (string, bool) {
	s, ok := in[key].(string)
	return s, ok
}

// Msg is the message type.
func (in Inbound) Msg() (string, bool) {
	return in.String("msg")
}
