package domain

// SendMessage is the inbound intent produced by an authenticated
// connection. The router trims, persists and fans it out; the sender
// identity is fixed by the connection, never by the payload.
type SendMessage struct {
	SenderID  int64
	Recipient Recipient
	Text      string
}
