// Package domain contains core concepts of the messaging system.
// This file defines Message records and the Recipient variant.
// Messages are immutable once accepted.
package domain

import "time"

// GeneralRoomID is the wire sentinel for the shared broadcast room.
const GeneralRoomID int64 = 0

// Recipient is either the general room or a specific user.
// The zero value addresses the general room, matching the wire
// sentinel 0, so a missing recipient decodes to a broadcast.
type Recipient struct {
	userID int64
}

func General() Recipient { return Recipient{} }

func Direct(userID int64) Recipient { return Recipient{userID: userID} }

// RecipientFromWire converts the wire integer into the variant. Zero
// is the general-room sentinel; callers reject negative ids before
// conversion.
func RecipientFromWire(id int64) Recipient {
	if id <= GeneralRoomID {
		return General()
	}
	return Direct(id)
}

func (r Recipient) IsGeneral() bool { return r.userID == GeneralRoomID }

// UserID returns the addressed user and true for a direct recipient.
func (r Recipient) UserID() (int64, bool) {
	return r.userID, r.userID != GeneralRoomID
}

// Wire returns the integer carried on the wire and in storage.
func (r Recipient) Wire() int64 { return r.userID }

// Message is an immutable chat record. The store-assigned ID carries
// the causal/display order; At is informational only and may disagree
// with ID order under concurrent writers.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	RecipientID int64     `json:"recipientId"`
	Text        string    `json:"text"`
	At          time.Time `json:"timestamp"`
}

func (m Message) Recipient() Recipient { return RecipientFromWire(m.RecipientID) }
