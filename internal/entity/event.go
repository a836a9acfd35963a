package entity

type EventKind int

const (
	EventStarted EventKind = iota
	EventUpdated
	EventDone
)

func (k EventKind) String() string {
	return [...]string{"started", "updated", "done"}[k]
}

// Event is what a transfer engine reports about an item. Window is only set on
// EventStarted, Outcome only on EventDone.
type Event struct {
	Kind    EventKind
	Item    Item
	Window  Window
	Outcome Outcome
}

func Started(item Item, win Window) Event {
	return Event{Kind: EventStarted, Item: item, Window: win}
}

func Updated(item Item) Event {
	return Event{Kind: EventUpdated, Item: item}
}

func Done(item Item, outcome Outcome) Event {
	return Event{Kind: EventDone, Item: item, Outcome: outcome}
}
