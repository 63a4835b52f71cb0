// Package relay implements the signaling plane for live proctoring
// streams. The attempt taker publishes; proctors subscribe. Only SDP and
// ICE payloads pass through here; media flows peer to peer.
package relay

import "encoding/json"

// Message types exchanged over a signaling socket.
const (
	TypeJoin       = "join"
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeCandidate  = "candidate"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeError      = "error"
)

// SignalMessage is the envelope for every frame on a signaling socket.
// From is always set by the server; To addresses point-to-point frames
// (answers and candidates) at a specific peer.
type SignalMessage struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// errorMessage builds an error frame for a peer.
func errorMessage(reason string) SignalMessage {
	raw, _ := json.Marshal(map[string]string{"reason": reason})
	return SignalMessage{Type: TypeError, Payload: raw}
}
