package relay

import (
	"sync"

	"go.uber.org/zap"

	"github.com/playontable/backend/internal/metrics"
	"github.com/playontable/backend/internal/models"
)

// State is the room lifecycle state. A room starts in the lobby and
// flips to playing at most once; it never goes back.
type State int

const (
	StateLobby State = iota
	StatePlaying
)

func (s State) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "lobby"
}

// EventSink receives room lifecycle notifications for external
// monitors. Implementations must be safe for concurrent use.
type EventSink interface {
	RoomEvent(event, code, sessionID string)
}

// Lifecycle events emitted to the sink.
const (
	EventRoomCreated  = "room_created"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventPlayStarted  = "play_started"
	EventRoomReleased = "room_released"
)

// Room owns membership, host identity and the lobby/playing state. All
// mutation happens under the room's own mutex; rooms are independent of
// one another and no cross-room lock ordering exists.
type Room struct {
	code string
	host *Session

	mu      sync.Mutex
	members map[*Session]struct{}
	state   State

	registry *Registry
	policy   Policy
	sink     EventSink
	log      *zap.Logger
}

// NewRoom registers a fresh room hosted by host and joins the host to
// it. The code is unique among live rooms for the room's lifetime.
func NewRoom(registry *Registry, policy Policy, host *Session, sink EventSink, log *zap.Logger) *Room {
	r := &Room{
		host:     host,
		members:  make(map[*Session]struct{}),
		registry: registry,
		policy:   policy,
		sink:     sink,
		log:      log,
	}
	r.code = registry.Allocate(r)

	r.mu.Lock()
	r.members[host] = struct{}{}
	host.setRoom(r)
	r.mu.Unlock()

	metrics.RoomsActive.Inc()
	r.emit(EventRoomCreated, host.ID)
	return r
}

// Code returns the room's immutable join code.
func (r *Room) Code() string { return r.code }

// Host returns the session that created the room.
func (r *Room) Host() *Session { return r.host }

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Join adds the session as a member, updating its room reference in the
// same critical section. The policy check and the membership mutation
// share the mutex with StartPlay, so a join can never land after a
// concurrent start has flipped the room to playing. Denial mutates
// nothing.
func (r *Room) Join(s *Session) Reason {
	r.mu.Lock()
	if reason := r.policy.CanJoin(s, r); reason.Denied() {
		r.mu.Unlock()
		return reason
	}
	r.members[s] = struct{}{}
	s.setRoom(r)
	r.mu.Unlock()

	r.emit(EventMemberJoined, s.ID)
	return ""
}

// Exit removes the session from the room. It tolerates double exits and
// exit-after-disconnect races: a non-member exit is a no-op. When the
// last member leaves, the room's code is released — disposal is
// membership-driven, never explicit.
func (r *Room) Exit(s *Session) {
	r.mu.Lock()
	if _, ok := r.members[s]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, s)
	s.clearRoom(r)
	empty := len(r.members) == 0
	r.mu.Unlock()

	r.emit(EventMemberLeft, s.ID)
	if empty {
		r.registry.Release(r.code)
		metrics.RoomsActive.Dec()
		r.emit(EventRoomReleased, "")
	}
}

// StartPlay flips the room from lobby to playing and tells every member.
// The transition is irreversible for the room's lifetime, so members
// receive the play envelope at most once. Denial mutates nothing and
// broadcasts nothing.
func (r *Room) StartPlay(initiator *Session) Reason {
	r.mu.Lock()
	if reason := r.policy.CanStart(initiator, r); reason.Denied() {
		r.mu.Unlock()
		return reason
	}
	r.state = StatePlaying
	snapshot := r.membersLocked()
	r.mu.Unlock()

	r.emit(EventPlayStarted, initiator.ID)
	r.deliver(snapshot, models.PlayEnvelope(), nil)
	return ""
}

// Broadcast fans the envelope out to every current member except
// exclude. The membership snapshot is taken under the mutex and the
// mutex released before any delivery, so a stalled recipient cannot
// block join/exit/start on the same room.
func (r *Room) Broadcast(env models.Envelope, exclude *Session) {
	r.mu.Lock()
	snapshot := r.membersLocked()
	r.mu.Unlock()
	r.deliver(snapshot, env, exclude)
}

func (r *Room) membersLocked() []*Session {
	snapshot := make([]*Session, 0, len(r.members))
	for m := range r.members {
		snapshot = append(snapshot, m)
	}
	return snapshot
}

// deliver queues the envelope to each recipient's outbound channel.
// Each recipient's network write happens on its own write pump, so
// deliveries proceed concurrently and one failure never delays or fails
// another. A full or closed buffer drops that one delivery; there are
// no retries — a persistently unreachable session is reaped by its own
// disconnect path.
func (r *Room) deliver(members []*Session, env models.Envelope, exclude *Session) {
	for _, m := range members {
		if m == exclude {
			continue
		}
		if !m.Send(env) {
			metrics.DroppedDeliveries.Inc()
			r.log.Debug("dropped delivery",
				zap.String("room", r.code),
				zap.String("session", m.ID),
				zap.String("hook", env.Hook))
		}
	}
}

func (r *Room) emit(event, sessionID string) {
	if r.sink != nil {
		r.sink.RoomEvent(event, r.code, sessionID)
	}
}
