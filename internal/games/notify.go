package games

import (
	"context"
	"log"
	"sync"
	"time"
)

// Events carried on Message.Event.
const (
	EventMatchCreated  = "match_created"
	EventPlayerJoined  = "player_joined"
	EventRoleAssigned  = "role_assigned"
	EventPhaseChanged  = "phase_changed"
	EventNightPrompt   = "night_prompt"
	EventTaskPrompt    = "task_prompt"
	EventVotePrompt    = "vote_prompt"
	EventFixerPrompt   = "fixer_prompt"
	EventNightSummary  = "night_summary"
	EventFinding       = "investigation_result"
	EventVoteResult    = "vote_result"
	EventShipFixed     = "ship_fixed"
	EventMatchEnded    = "match_ended"
	EventMatchFailed   = "match_failed"
	EventActionReceipt = "action_received"
	EventAchievement   = "achievement_unlocked"
)

// OptionAction tells the transport which operation an option invokes.
type OptionAction string

const (
	OptionNightAction OptionAction = "night_action"
	OptionVote        OptionAction = "vote"
	OptionFixer       OptionAction = "fixer"
	OptionTask        OptionAction = "task"
)

// Option is one selectable choice attached to a prompt. Target 0 means none (skip or abstain).
type Option struct {
	Label  string       `json:"label"`
	Action OptionAction `json:"action"`
	Kind   ActionKind   `json:"kind,omitempty"`
	Target int64        `json:"target_id,omitempty"`
	Fix    bool         `json:"fix,omitempty"`
}

// Message is a room broadcast or private prompt.
type Message struct {
	Event   string                 `json:"event"`
	MatchID string                 `json:"match_id"`
	Text    string                 `json:"text"`
	Options []Option               `json:"options,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Notifier delivers messages to a room or to a single user. Errors are logged by the engine and never
// affect the match.
type Notifier interface {
	NotifyRoom(ctx context.Context, roomID int64, msg Message) error
	NotifyUser(ctx context.Context, userID int64, msg Message) error
}

// MultiNotifier fans a message out to several transports.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyRoom(ctx context.Context, roomID int64, msg Message) error {
	var first error
	for _, n := range m {
		if err := n.NotifyRoom(ctx, roomID, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiNotifier) NotifyUser(ctx context.Context, userID int64, msg Message) error {
	var first error
	for _, n := range m {
		if err := n.NotifyUser(ctx, userID, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) NotifyRoom(context.Context, int64, Message) error { return nil }
func (NopNotifier) NotifyUser(context.Context, int64, Message) error { return nil }

type delivery struct {
	room   bool
	target int64
	msg    Message
}

const (
	outboxSize      = 1024
	deliveryTimeout = 10 * time.Second
)

// outbox decouples the engine from transport latency. Enqueue never blocks; a full queue drops.
type outbox struct {
	notifier Notifier
	queue    chan delivery
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newOutbox(n Notifier) *outbox {
	if n == nil {
		n = NopNotifier{}
	}
	o := &outbox{notifier: n, queue: make(chan delivery, outboxSize), done: make(chan struct{})}
	go o.run()
	return o
}

func (o *outbox) run() {
	defer close(o.done)
	for d := range o.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		var err error
		if d.room {
			err = o.notifier.NotifyRoom(ctx, d.target, d.msg)
		} else {
			err = o.notifier.NotifyUser(ctx, d.target, d.msg)
		}
		cancel()
		if err != nil {
			log.Printf("notify failed room=%t recipient=%d event=%s match_id=%s: %v", d.room, d.target, d.msg.Event, d.msg.MatchID, err)
		}
	}
}

func (o *outbox) enqueue(d delivery) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		log.Printf("notify dropped after shutdown recipient=%d event=%s", d.target, d.msg.Event)
		return
	}
	select {
	case o.queue <- d:
	default:
		log.Printf("notify queue full, dropped recipient=%d event=%s match_id=%s", d.target, d.msg.Event, d.msg.MatchID)
	}
}

func (o *outbox) room(roomID int64, msg Message) {
	o.enqueue(delivery{room: true, target: roomID, msg: msg})
}

func (o *outbox) user(userID int64, msg Message) { o.enqueue(delivery{target: userID, msg: msg}) }

// close stops accepting messages and waits for the queue to drain.
func (o *outbox) close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.done
}
