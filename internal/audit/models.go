// Package audit persists every consumed proposal event as a row. It is a
// downstream consumer: redeliveries happen and must never corrupt state;
// duplicate rows are acceptable.
package audit

import "time"

// Entry is one persisted audit row. PayloadJSON keeps the event payload
// opaque so schema drift upstream never breaks auditing.
type Entry struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	ProposalID  int64     `json:"proposalId"`
	PayloadJSON string    `json:"payloadJson"`
	At          time.Time `json:"at"`
}

// Page is the paged read shape for audit listings.
type Page struct {
	Items []Entry `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
}
