package models

// Event types pushed from the server over a live channel.
const (
	EventRoster   = "roster"
	EventDelivery = "delivery"
)

// Event is the envelope written to a live channel. Exactly one of Online or
// Message is set, depending on Type.
type Event struct {
	Type    string   `json:"type"`
	Online  []string `json:"online,omitempty"`
	Message *Message `json:"message,omitempty"`
}

func NewRosterEvent(online []string) Event {
	if online == nil {
		online = []string{}
	}
	return Event{Type: EventRoster, Online: online}
}

func NewDeliveryEvent(msg Message) Event {
	return Event{Type: EventDelivery, Message: &msg}
}

// Delivery is the payload carried on the cross-instance bus.
type Delivery struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}
