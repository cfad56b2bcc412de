package sim

import (
	"container/heap"
	"context"

	"github.com/sirupsen/logrus"
)

// EventType identifies a simulation event kind.
type EventType string

const (
	EventTypeConveyorDone EventType = "ConveyorDone"
	EventTypeOvenArrival  EventType = "OvenArrival"
	EventTypeHoldCheck    EventType = "HoldCheck"
	EventTypeDrainStart   EventType = "DrainStart"
	EventTypeConveyorPoll EventType = "ConveyorPoll"
)

// EventTypePriority defines ordering for simultaneous events.
// Lower values are processed first: a finished trip is accounted before new
// jobs arrive, and picks see every placement made at the same instant.
var EventTypePriority = map[EventType]int{
	EventTypeConveyorDone: 1,
	EventTypeOvenArrival:  2,
	EventTypeHoldCheck:    3,
	EventTypeDrainStart:   4,
	EventTypeConveyorPoll: 5,
}

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in ticks) and an Execute method that advances
// simulation state when invoked.
type Event interface {
	Timestamp() int64
	EventID() uint64
	Type() EventType
	Execute(ctx context.Context, sim *Simulator)
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	timestamp int64
	eventID   uint64
	eventType EventType
}

func (e *BaseEvent) Timestamp() int64 { return e.timestamp }
func (e *BaseEvent) EventID() uint64  { return e.eventID }
func (e *BaseEvent) Type() EventType  { return e.eventType }

// OvenArrivalEvent produces the next job of one oven.
type OvenArrivalEvent struct {
	BaseEvent
	Oven OvenID
}

func (e *OvenArrivalEvent) Execute(_ context.Context, sim *Simulator) {
	sim.handleArrival(e)
}

// HoldCheckEvent force-releases jobs held past the hold limit.
type HoldCheckEvent struct {
	BaseEvent
}

func (e *HoldCheckEvent) Execute(_ context.Context, sim *Simulator) {
	sim.handleHoldCheck(e)
}

// ConveyorPollEvent asks the pick policy for the next withdrawal.
type ConveyorPollEvent struct {
	BaseEvent
}

func (e *ConveyorPollEvent) Execute(_ context.Context, sim *Simulator) {
	sim.handleConveyorPoll(e)
}

// ConveyorDoneEvent ends a conveyor trip carrying Colors.
type ConveyorDoneEvent struct {
	BaseEvent
	BufferID string
	Colors   []string
}

func (e *ConveyorDoneEvent) Execute(_ context.Context, sim *Simulator) {
	sim.handleConveyorDone(e)
}

// DrainStartEvent stops the ovens and switches the controller to drain mode.
type DrainStartEvent struct {
	BaseEvent
	UseExact bool
}

func (e *DrainStartEvent) Execute(ctx context.Context, sim *Simulator) {
	logrus.Infof("[tick %d] drain start (exact=%v)", e.timestamp, e.UseExact)
	sim.handleDrainStart(ctx, e)
}

// EventHeap implements a priority queue with deterministic ordering.
// Ordering: timestamp → type priority → event ID
type EventHeap struct {
	events []Event
}

// NewEventHeap creates a new event heap.
func NewEventHeap() *EventHeap {
	h := &EventHeap{events: make([]Event, 0)}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *EventHeap) Len() int { return len(h.events) }

// Less implements heap.Interface with deterministic ordering.
func (h *EventHeap) Less(i, j int) bool {
	ei, ej := h.events[i], h.events[j]
	if ei.Timestamp() != ej.Timestamp() {
		return ei.Timestamp() < ej.Timestamp()
	}
	priI := EventTypePriority[ei.Type()]
	priJ := EventTypePriority[ej.Type()]
	if priI != priJ {
		return priI < priJ
	}
	return ei.EventID() < ej.EventID()
}

// Swap implements heap.Interface
func (h *EventHeap) Swap(i, j int) { h.events[i], h.events[j] = h.events[j], h.events[i] }

// Push implements heap.Interface
func (h *EventHeap) Push(x any) { h.events = append(h.events, x.(Event)) }

// Pop implements heap.Interface
func (h *EventHeap) Pop() any {
	old := h.events
	n := len(old)
	item := old[n-1]
	h.events = old[0 : n-1]
	return item
}

// Schedule adds an event to the heap.
func (h *EventHeap) Schedule(e Event) { heap.Push(h, e) }

// PopNext removes and returns the next event, or nil when empty.
func (h *EventHeap) PopNext() Event {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(Event)
}

// Peek returns the next event without removing it.
func (h *EventHeap) Peek() Event {
	if h.Len() == 0 {
		return nil
	}
	return h.events[0]
}
