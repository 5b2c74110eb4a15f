package relay

import "strings"

// Reason is a short machine-readable code explaining why a join or
// start request was refused. The empty reason means permitted.
type Reason string

const (
	// ReasonRoomNotFound: no room is registered under the requested code.
	ReasonRoomNotFound Reason = "none"
	// ReasonHostRejoin: the host tried to join their own room.
	ReasonHostRejoin Reason = "host"
	// ReasonRoomPlaying: the room has already left the lobby.
	ReasonRoomPlaying Reason = "play"
	// ReasonTooFewMembers: the room is below the start threshold.
	ReasonTooFewMembers Reason = "void"
	// ReasonHostOnly: a non-host tried to start a host-only room.
	ReasonHostOnly Reason = "only"
)

func (r Reason) Denied() bool { return r != "" }

// Policy is the stateless rules evaluator. The knobs cover the behaviors
// that varied across deployments; defaults match the reference protocol.
type Policy struct {
	// AllowHostRejoin permits a host to join the room they created.
	AllowHostRejoin bool
	// FoldCodeCase upper-cases join codes before lookup.
	FoldCodeCase bool
	// MinStartMembers is the minimum membership required to start play.
	MinStartMembers int
	// HostOnlyStart restricts starting play to the room's host.
	HostOnlyStart bool
	// AutoRoomOnConnect gives every new session a fresh room as host.
	AutoRoomOnConnect bool
	// NoEchoHooks are relay kinds delivered to everyone but the sender,
	// for continuous updates where echoing the sender's own cursor or
	// drag position is unwanted.
	NoEchoHooks map[string]bool
	// EchoHooks are relay kinds delivered to every member including the
	// sender, so discrete actions confirm uniformly.
	EchoHooks map[string]bool
}

func DefaultPolicy() Policy {
	return Policy{
		FoldCodeCase:      true,
		MinStartMembers:   2,
		AutoRoomOnConnect: true,
		NoEchoHooks:       map[string]bool{"drag": true, "drop": true, "point": true},
		EchoHooks:         map[string]bool{"roll": true, "step": true, "wipe": true, "copy": true},
	}
}

// NormalizeCode folds a join code according to policy.
func (p Policy) NormalizeCode(code string) string {
	if p.FoldCodeCase {
		return strings.ToUpper(code)
	}
	return code
}

// CanJoin decides whether s may join r. Called with r's mutex held; the
// nil-room case is evaluated by the dispatcher before any lock exists.
func (p Policy) CanJoin(s *Session, r *Room) Reason {
	switch {
	case r == nil:
		return ReasonRoomNotFound
	case !p.AllowHostRejoin && r.host == s:
		return ReasonHostRejoin
	case r.state == StatePlaying:
		return ReasonRoomPlaying
	}
	return ""
}

// CanStart decides whether s may flip r from lobby to playing. Called
// with r's mutex held.
func (p Policy) CanStart(s *Session, r *Room) Reason {
	switch {
	case r.state == StatePlaying:
		return ReasonRoomPlaying
	case p.HostOnlyStart && r.host != s:
		return ReasonHostOnly
	case len(r.members) < p.MinStartMembers:
		return ReasonTooFewMembers
	}
	return ""
}
