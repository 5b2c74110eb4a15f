package models

import "encoding/json"

// Envelope is the websocket message wrapper used in both directions.
// Data is kept raw so relayed payloads are forwarded byte-for-byte.
type Envelope struct {
	Hook  string          `json:"hook"`
	Data  json.RawMessage `json:"data,omitempty"`
	Index *int            `json:"index,omitempty"`
}

// Outbound hooks produced by the server itself. Everything else on the
// wire is a client hook relayed as-is.
const (
	HookCode = "code"
	HookFail = "fail"
	HookPlay = "play"
)

// CodeEnvelope announces a freshly assigned room code to its host.
func CodeEnvelope(code string) Envelope {
	data, _ := json.Marshal(code)
	return Envelope{Hook: HookCode, Data: data}
}

// FailEnvelope reports a denial reason to the session whose request was
// refused. Denials never go to anyone else.
func FailEnvelope(reason string) Envelope {
	data, _ := json.Marshal(reason)
	return Envelope{Hook: HookFail, Data: data}
}

// PlayEnvelope is broadcast to every member when a room starts playing.
func PlayEnvelope() Envelope {
	return Envelope{Hook: HookPlay}
}
