package relay

import (
	"sync"

	"github.com/rs/zerolog"
)

// Peer is one side of a signaling socket. Send must be safe for
// concurrent use; implementations that cannot keep up should fail fast
// rather than block the room.
type Peer interface {
	ID() string
	Send(msg SignalMessage) error
	Close() error
}

// Room relays signaling frames for one attempt's stream. Exactly one
// publisher (the attempt taker) and any number of subscribers (proctors).
type Room struct {
	mu          sync.Mutex
	attemptID   string
	publisher   Peer
	subscribers map[string]Peer
	logger      zerolog.Logger
}

func newRoom(attemptID string, logger zerolog.Logger) *Room {
	return &Room{
		attemptID:   attemptID,
		subscribers: make(map[string]Peer),
		logger:      logger.With().Str("room", attemptID).Logger(),
	}
}

// JoinPublisher registers the attempt taker. A second publisher replaces
// the first: reconnects after a network drop land here.
func (r *Room) JoinPublisher(p Peer) {
	r.mu.Lock()
	old := r.publisher
	r.publisher = p
	subs := r.snapshotSubscribers()
	r.mu.Unlock()

	if old != nil && old.ID() != p.ID() {
		old.Close()
	}

	// Tell the publisher who is already watching so it can offer to them.
	for _, sub := range subs {
		r.send(p, SignalMessage{Type: TypePeerJoined, From: sub.ID()})
	}
}

// JoinSubscriber registers a watching proctor and announces it to the
// publisher so an offer can be initiated.
func (r *Room) JoinSubscriber(p Peer) {
	r.mu.Lock()
	r.subscribers[p.ID()] = p
	pub := r.publisher
	r.mu.Unlock()

	if pub != nil {
		r.send(pub, SignalMessage{Type: TypePeerJoined, From: p.ID()})
	}
}

// Leave removes a peer. A departing publisher tears the room's streams
// down: every subscriber is told and disconnected.
func (r *Room) Leave(p Peer) (empty bool) {
	r.mu.Lock()
	if r.publisher != nil && r.publisher.ID() == p.ID() {
		r.publisher = nil
		subs := r.snapshotSubscribers()
		r.subscribers = make(map[string]Peer)
		r.mu.Unlock()

		for _, sub := range subs {
			r.send(sub, SignalMessage{Type: TypePeerLeft, From: p.ID()})
			sub.Close()
		}

		r.mu.Lock()
		empty = r.publisher == nil && len(r.subscribers) == 0
		r.mu.Unlock()
		return empty
	}

	delete(r.subscribers, p.ID())
	pub := r.publisher
	empty = pub == nil && len(r.subscribers) == 0
	r.mu.Unlock()

	if pub != nil {
		r.send(pub, SignalMessage{Type: TypePeerLeft, From: p.ID()})
	}
	return empty
}

// Route forwards a signaling frame from a peer. Offers fan out from the
// publisher to the addressed subscriber; answers and candidates travel
// point to point.
func (r *Room) Route(from Peer, msg SignalMessage) {
	msg.From = from.ID()

	switch msg.Type {
	case TypeOffer:
		r.mu.Lock()
		isPublisher := r.publisher != nil && r.publisher.ID() == from.ID()
		target, ok := r.subscribers[msg.To]
		r.mu.Unlock()

		if !isPublisher {
			r.send(from, errorMessage("only the publisher may send offers"))
			return
		}
		if !ok {
			r.send(from, errorMessage("unknown peer: "+msg.To))
			return
		}
		r.send(target, msg)

	case TypeAnswer, TypeCandidate:
		r.mu.Lock()
		var target Peer
		if r.publisher != nil && r.publisher.ID() == msg.To {
			target = r.publisher
		} else {
			target = r.subscribers[msg.To]
		}
		r.mu.Unlock()

		if target == nil {
			r.send(from, errorMessage("unknown peer: "+msg.To))
			return
		}
		r.send(target, msg)

	default:
		r.send(from, errorMessage("unsupported message type: "+msg.Type))
	}
}

func (r *Room) snapshotSubscribers() []Peer {
	subs := make([]Peer, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		subs = append(subs, s)
	}
	return subs
}

func (r *Room) send(p Peer, msg SignalMessage) {
	if err := p.Send(msg); err != nil {
		r.logger.Warn().Err(err).Str("peer", p.ID()).Msg("signal delivery failed")
	}
}

// Registry tracks the rooms currently carrying streams, one per attempt.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	logger zerolog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		logger: logger.With().Str("component", "relay").Logger(),
	}
}

// Room returns the room for an attempt, creating it on first use.
func (g *Registry) Room(attemptID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[attemptID]
	if !ok {
		room = newRoom(attemptID, g.logger)
		g.rooms[attemptID] = room
	}
	return room
}

// Release drops a room once its last peer has left.
func (g *Registry) Release(attemptID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, attemptID)
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
