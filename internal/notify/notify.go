// Package notify delivers operator notifications. Delivery is best-effort:
// payment reconciliation never blocks on, and never fails because of, a
// notification.
package notify

// Message is one operator notification.
type Message struct {
	Title string
	Body  string
	// Link is an optional URL shown with the message.
	Link string
	// Emergency messages bypass the receiver's quiet hours and repeat until
	// acknowledged. Reserved for disputes.
	Emergency bool
	ProjectID string
	EventType string
}

// Sender pushes a single message to the configured channel.
type Sender interface {
	Push(msg Message) error
}
