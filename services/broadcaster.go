package services

import (
	"sync"

	"github.com/google/uuid"

	"cleanup-game-system/models"
)

// Outbound message names, the only shapes the core emits toward the
// transport.
const (
	MsgPresence       = "presence"
	MsgStats          = "stats"
	MsgGameEvent      = "game:event"
	MsgSessionStarted = "session:started"
	MsgSessionEnded   = "session:ended"
)

// OutboundMessage is one unit handed to a subscribed connection. The wire
// encoding (SSE framing) is the transport's concern.
type OutboundMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Subscriber is one connection's mailbox. Delivery is fire-and-forget: a
// full mailbox drops messages for that subscriber instead of blocking the
// room.
type Subscriber struct {
	ID string
	C  chan OutboundMessage

	closeOnce sync.Once
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.C) })
}

// SessionArchiver receives the flattened record of a finished session.
// Implemented by the archive worker; nil when archiving is disabled.
type SessionArchiver interface {
	Enqueue(final models.SessionView, snap models.StatsSnapshot)
}

// Broadcaster is the coordination layer between the gateway and the
// store/engine pair: it serializes all mutations of one session behind a
// per-session lock, and fans resulting snapshots and events out to every
// connection subscribed to that session's room. Errors go back to the
// caller only, never into the room.
type Broadcaster struct {
	sessions *SessionStore
	stats    *StatsEngine
	archiver SessionArchiver

	mu    sync.Mutex
	rooms map[string]map[*Subscriber]struct{}
	locks map[string]*sync.Mutex
}

func NewBroadcaster(sessions *SessionStore, stats *StatsEngine, archiver SessionArchiver) *Broadcaster {
	return &Broadcaster{
		sessions: sessions,
		stats:    stats,
		archiver: archiver,
		rooms:    make(map[string]map[*Subscriber]struct{}),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Subscribe attaches a new connection mailbox to the session's room and
// privately replays current presence and stats, so a late joiner sees
// history without waiting for the next action.
func (b *Broadcaster) Subscribe(sessionID string) (*Subscriber, error) {
	view, ok := b.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	sub := &Subscriber{
		ID: uuid.NewString(),
		C:  make(chan OutboundMessage, 64),
	}

	b.mu.Lock()
	room, ok := b.rooms[sessionID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		b.rooms[sessionID] = room
	}
	room[sub] = struct{}{}
	b.mu.Unlock()

	b.send(sub, OutboundMessage{Event: MsgPresence, Data: presenceOf(view)})
	b.send(sub, OutboundMessage{Event: MsgStats, Data: b.stats.Snapshot(sessionID)})
	return sub, nil
}

// Unsubscribe detaches a connection and closes its mailbox.
func (b *Broadcaster) Unsubscribe(sessionID string, sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	if room, ok := b.rooms[sessionID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(b.rooms, sessionID)
		}
	}
	b.mu.Unlock()
	sub.close()
}

// OnJoin registers (or merges) the participant and announces the new
// presence to the room.
func (b *Broadcaster) OnJoin(sessionID, userID, displayName, accessToken, provider string) (models.SessionView, error) {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	view, err := b.sessions.Join(sessionID, userID, displayName, accessToken, provider)
	if err != nil {
		return models.SessionView{}, err
	}
	b.broadcast(sessionID, OutboundMessage{Event: MsgPresence, Data: presenceOf(view)})
	return view, nil
}

// OnStatusUpdate merges readiness fields and rebroadcasts presence.
func (b *Broadcaster) OnStatusUpdate(sessionID, userID string, patch models.StatusPatch) error {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	view, err := b.sessions.SetStatus(sessionID, userID, patch)
	if err != nil {
		return err
	}
	b.broadcast(sessionID, OutboundMessage{Event: MsgPresence, Data: presenceOf(view)})
	return nil
}

// OnAction applies one scored deletion and fans out the fresh snapshot
// followed by each produced event, in order. Unknown sessions or
// participants surface as errors to the caller and nothing reaches the
// room.
func (b *Broadcaster) OnAction(sessionID, userID, itemName string, size int64) error {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	view, ok := b.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	participant, ok := view.User(userID)
	if !ok {
		return ErrParticipantNotFound
	}

	events, err := b.stats.ApplyDeletion(sessionID, userID, participant.DisplayName, itemName, size)
	if err != nil {
		return err
	}
	b.sessions.Touch(sessionID)

	b.broadcast(sessionID, OutboundMessage{Event: MsgStats, Data: b.stats.Snapshot(sessionID)})
	for _, ev := range events {
		b.broadcast(sessionID, OutboundMessage{Event: MsgGameEvent, Data: ev})
	}
	return nil
}

// OnSessionStart flips the session into the started phase and notifies the
// room.
func (b *Broadcaster) OnSessionStart(sessionID string) error {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	view, err := b.sessions.Begin(sessionID)
	if err != nil {
		return err
	}
	b.broadcast(sessionID, OutboundMessage{Event: MsgSessionStarted, Data: presenceOf(view)})
	b.broadcast(sessionID, OutboundMessage{Event: MsgPresence, Data: presenceOf(view)})
	return nil
}

// OnSessionEnd ends the session, hands the final standings to the archiver,
// notifies the room and discards the session's stats. The room is torn down
// afterwards; every subscriber mailbox is closed.
func (b *Broadcaster) OnSessionEnd(sessionID string) {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	view, ok := b.sessions.End(sessionID)
	if !ok {
		return
	}

	final := b.stats.Snapshot(sessionID)
	if b.archiver != nil {
		b.archiver.Enqueue(view, final)
	}

	b.broadcast(sessionID, OutboundMessage{Event: MsgStats, Data: final})
	b.broadcast(sessionID, OutboundMessage{Event: MsgSessionEnded, Data: presenceOf(view)})

	b.stats.Reset(sessionID)
	b.dropRoom(sessionID)
}

// OnLeave removes the participant. When the last player leaves, the
// session and its stats vanish with them; otherwise the room sees the
// shrunken presence.
func (b *Broadcaster) OnLeave(sessionID, userID string) {
	lock := b.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	removed := b.sessions.Leave(sessionID, userID)
	if removed {
		b.stats.Reset(sessionID)
		b.dropRoom(sessionID)
		return
	}
	if view, ok := b.sessions.Get(sessionID); ok {
		b.broadcast(sessionID, OutboundMessage{Event: MsgPresence, Data: presenceOf(view)})
	}
}

// broadcast delivers to every subscriber of the room without ever blocking
// on a slow or gone receiver.
func (b *Broadcaster) broadcast(sessionID string, msg OutboundMessage) {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.rooms[sessionID]))
	for sub := range b.rooms[sessionID] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.send(sub, msg)
	}
}

func (b *Broadcaster) send(sub *Subscriber, msg OutboundMessage) {
	defer func() {
		// A subscriber torn down concurrently may have a closed mailbox;
		// dropping the message is the contract either way.
		_ = recover()
	}()
	select {
	case sub.C <- msg:
	default: // mailbox full, drop for this receiver only
	}
}

func (b *Broadcaster) dropRoom(sessionID string) {
	b.mu.Lock()
	room := b.rooms[sessionID]
	delete(b.rooms, sessionID)
	delete(b.locks, sessionID)
	b.mu.Unlock()
	for sub := range room {
		sub.close()
	}
}

// sessionLock returns the one mutex serializing everything that touches
// this session id. Unrelated sessions proceed in parallel.
func (b *Broadcaster) sessionLock(sessionID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[sessionID] = l
	}
	return l
}

func presenceOf(view models.SessionView) models.Presence {
	users := make([]models.PresenceEntry, 0, len(view.Users))
	for _, u := range view.Users {
		users = append(users, models.PresenceEntry{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Status:      u.Status,
		})
	}
	return models.Presence{
		SessionID: view.ID,
		Phase:     view.Phase,
		AllReady:  view.AllReady,
		Users:     users,
	}
}
