package types

// Event is the wire representation of a state change notification. Attribute
// values are strings so the payload survives JSON round-trips and indexers do
// not need amount-aware decoding.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
