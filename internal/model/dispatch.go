package model

import "time"

type MessageID string

type ItemStatus string

const (
	ItemStatusSent  ItemStatus = "sent"
	ItemStatusError ItemStatus = "error"
)

// OutboundMessage is a single message ready for dispatch: the recipient as
// entered by the caller plus the resolved text (per-item or default).
type OutboundMessage struct {
	Number string
	Text   string
}

type ItemResult struct {
	Number    string     `json:"number"`
	Status    ItemStatus `json:"status"`
	MessageID MessageID  `json:"messageId,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type DispatchSummary struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// DispatchResult holds one result per requested item, in request order.
type DispatchResult struct {
	ID         string          `json:"id"`
	Summary    DispatchSummary `json:"statistics"`
	Results    []ItemResult    `json:"results"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// DispatchRun is the persisted summary of a bulk run. Counts only, the
// message content is never stored.
type DispatchRun struct {
	ID         string    `db:"ID"`
	StartedAt  time.Time `db:"StartedAt"`
	FinishedAt time.Time `db:"FinishedAt"`
	Total      int       `db:"Total"`
	Sent       int       `db:"Sent"`
	Errors     int       `db:"Errors"`
}

type SendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type BulkItem struct {
	Number  string `json:"number"`
	Message string `json:"message,omitempty"`
}

type BulkSendRequest struct {
	Messages       []BulkItem `json:"messages"`
	DefaultMessage string     `json:"defaultMessage,omitempty"`
}

// Outbound resolves every item against the default message. Validation
// guarantees the result has no empty texts before dispatch begins.
func (r *BulkSendRequest) Outbound() []OutboundMessage {
	messages := make([]OutboundMessage, 0, len(r.Messages))
	for _, item := range r.Messages {
		text := item.Message
		if text == "" {
			text = r.DefaultMessage
		}
		messages = append(messages, OutboundMessage{Number: item.Number, Text: text})
	}
	return messages
}
