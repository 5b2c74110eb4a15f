package relay

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/playontable/backend/internal/metrics"
	"github.com/playontable/backend/internal/models"
)

// Dispatcher maps inbound envelopes to room and session operations.
// Policy denials become a fail reply to the originating session only;
// they never touch other sessions and never terminate a stream.
type Dispatcher struct {
	registry *Registry
	policy   Policy
	sink     EventSink
	log      *zap.Logger

	handlers map[string]func(*Session, models.Envelope)
}

func NewDispatcher(registry *Registry, policy Policy, sink EventSink, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		policy:   policy,
		sink:     sink,
		log:      log,
	}
	d.handlers = map[string]func(*Session, models.Envelope){
		"make": d.handleMake,
		"join": d.handleJoin,
		"play": d.handleStart,
		"room": d.handleStart,
		"solo": d.handleStart,
	}
	for hook := range policy.NoEchoHooks {
		d.handlers[hook] = d.relayNoEcho
	}
	for hook := range policy.EchoHooks {
		d.handlers[hook] = d.relayEcho
	}
	return d
}

// Policy returns the dispatcher's policy, for surfaces that need code
// normalization.
func (d *Dispatcher) Policy() Policy { return d.policy }

// Attach is called by the transport once a session's stream is open.
// Under the default policy the session becomes host of a fresh room and
// is told its code.
func (d *Dispatcher) Attach(s *Session) {
	metrics.SessionsConnected.Inc()
	if d.policy.AutoRoomOnConnect {
		room := d.OpenRoom(s)
		s.Send(models.CodeEnvelope(room.Code()))
	}
}

// Detach tears the session down. Safe to call from any exit path; only
// the first call does anything.
func (d *Dispatcher) Detach(s *Session) {
	if s.Close() {
		metrics.SessionsConnected.Dec()
	}
}

// OpenRoom creates and registers a room hosted by s.
func (d *Dispatcher) OpenRoom(s *Session) *Room {
	return NewRoom(d.registry, d.policy, s, d.sink, d.log)
}

// Dispatch routes one decoded envelope from the session. Unrecognized
// hooks are dropped without closing the stream.
func (d *Dispatcher) Dispatch(s *Session, env models.Envelope) {
	handler, ok := d.handlers[env.Hook]
	if !ok {
		metrics.UnknownMessages.Inc()
		d.log.Debug("dropping unknown hook",
			zap.String("session", s.ID),
			zap.String("hook", env.Hook))
		return
	}
	handler(s, env)
}

func (d *Dispatcher) handleMake(s *Session, _ models.Envelope) {
	if s.Room() != nil {
		d.fail(s, "")
		return
	}
	room := d.OpenRoom(s)
	s.Send(models.CodeEnvelope(room.Code()))
}

func (d *Dispatcher) handleJoin(s *Session, env models.Envelope) {
	var code string
	if err := json.Unmarshal(env.Data, &code); err != nil {
		d.log.Debug("dropping join with malformed code",
			zap.String("session", s.ID), zap.Error(err))
		return
	}

	room, ok := d.registry.Lookup(d.policy.NormalizeCode(code))
	if !ok {
		d.fail(s, ReasonRoomNotFound)
		return
	}

	prior := s.Room()
	if reason := room.Join(s); reason.Denied() {
		d.fail(s, reason)
		return
	}
	if prior != nil && prior != room {
		prior.Exit(s)
	}
}

func (d *Dispatcher) handleStart(s *Session, _ models.Envelope) {
	room := s.Room()
	if room == nil {
		d.fail(s, ReasonRoomNotFound)
		return
	}
	if reason := room.StartPlay(s); reason.Denied() {
		d.fail(s, reason)
	}
}

func (d *Dispatcher) relayNoEcho(s *Session, env models.Envelope) {
	d.relay(s, env, s)
}

func (d *Dispatcher) relayEcho(s *Session, env models.Envelope) {
	d.relay(s, env, nil)
}

func (d *Dispatcher) relay(s *Session, env models.Envelope, exclude *Session) {
	room := s.Room()
	if room == nil {
		return
	}
	room.Broadcast(env, exclude)
	metrics.RelayedMessages.WithLabelValues(env.Hook).Inc()
}

func (d *Dispatcher) fail(s *Session, reason Reason) {
	metrics.Denials.WithLabelValues(string(reason)).Inc()
	s.Send(models.FailEnvelope(string(reason)))
}
