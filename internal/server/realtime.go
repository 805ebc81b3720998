package server

import (
	"context"
	"sync"
	"time"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
)

var _ reports.UnitNotifier = (*RealtimeDispatcher)(nil)

const (
	RealtimeEventNotification = "notification"
	RealtimeEventBadge        = "badge"
	RealtimeEventSyncWarning  = "sync-warning"
	realtimeEventHeartbeat    = "heartbeat"
	realtimeHeartbeatInterval = 25 * time.Second

	// allUnitsScope is the subscriber scope of sessions that see every unit.
	allUnitsScope = ""
)

type RealtimeMessage struct {
	EventType string    `json:"-"`
	Unit      string    `json:"unit,omitempty"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	Count     *int      `json:"count,omitempty"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RealtimeDispatcher fans notifications out to connected clients, keyed by the unit scope of their
// session. Unit-scoped subscribers only receive notices, summaries and badge counts of their unit. It is
// the reconciler's Notifier and the syncer's warning sink.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// Subscribe registers a stream for a session scope, a unit or allUnitsScope, until ctx ends or cleanup
// runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, scope string) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(scope, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(scope, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers message to every subscriber regardless of scope.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.publishScoped(func(string) (RealtimeMessage, bool) {
		return message, true
	})
}

// publishScoped asks build for the message of each subscribed scope. Slow subscribers drop messages
// rather than block.
func (d *RealtimeDispatcher) publishScoped(build func(scope string) (RealtimeMessage, bool)) {
	now := d.clock().UTC()
	d.mu.RLock()
	targets := make(map[string][]*realtimeSubscriber, len(d.subscribers))
	for scope, subscribers := range d.subscribers {
		for _, subscriber := range subscribers {
			targets[scope] = append(targets[scope], subscriber)
		}
	}
	d.mu.RUnlock()

	for scope, subscribers := range targets {
		message, ok := build(scope)
		if !ok {
			continue
		}
		if message.Timestamp.IsZero() {
			message.Timestamp = now
		}
		for _, subscriber := range subscribers {
			select {
			case subscriber.stream <- message:
			default:
			}
		}
	}
}

// Send implements reports.Notifier. The notice cannot be attributed to a unit, so only sessions that
// see every unit receive it.
func (d *RealtimeDispatcher) Send(title, body string) {
	d.publishScoped(func(scope string) (RealtimeMessage, bool) {
		return RealtimeMessage{EventType: RealtimeEventNotification, Title: title, Body: body}, scope == allUnitsScope
	})
}

// SetBadgeCount implements reports.Notifier for sessions that see every unit.
func (d *RealtimeDispatcher) SetBadgeCount(count int) {
	d.publishScoped(func(scope string) (RealtimeMessage, bool) {
		return RealtimeMessage{EventType: RealtimeEventBadge, Count: &count}, scope == allUnitsScope
	})
}

// SendForUnit implements reports.UnitNotifier.
func (d *RealtimeDispatcher) SendForUnit(unit, title, body string) {
	d.publishScoped(func(scope string) (RealtimeMessage, bool) {
		message := RealtimeMessage{EventType: RealtimeEventNotification, Unit: unit, Title: title, Body: body}
		return message, scope == allUnitsScope || scope == unit
	})
}

// SendSummary implements reports.UnitNotifier.
func (d *RealtimeDispatcher) SendSummary(title, body string, unitBody func(unit string) string) {
	d.publishScoped(func(scope string) (RealtimeMessage, bool) {
		if scope == allUnitsScope {
			return RealtimeMessage{EventType: RealtimeEventNotification, Title: title, Body: body}, true
		}
		return RealtimeMessage{EventType: RealtimeEventNotification, Unit: scope, Title: title, Body: unitBody(scope)}, true
	})
}

// SetBadgeCounts implements reports.UnitNotifier.
func (d *RealtimeDispatcher) SetBadgeCounts(total int, perUnit map[string]int) {
	d.publishScoped(func(scope string) (RealtimeMessage, bool) {
		count := total
		if scope != allUnitsScope {
			count = perUnit[scope]
		}
		return RealtimeMessage{EventType: RealtimeEventBadge, Count: &count}, true
	})
}

// PublishWarning implements syncer.WarningPublisher. Sync warnings go to every subscriber.
func (d *RealtimeDispatcher) PublishWarning(code, message string) {
	d.Publish(RealtimeMessage{EventType: RealtimeEventSyncWarning, Code: code, Body: message})
}

// SubscriberCount reports the number of open streams.
func (d *RealtimeDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, subscribers := range d.subscribers {
		total += len(subscribers)
	}
	return total
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(scope string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[scope]; !ok {
		d.subscribers[scope] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[scope][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(scope string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[scope]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, scope)
		}
	}
	d.mu.Unlock()
}
