package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent announces a ledger change. It carries ids only; the
// consumer reads the current row from the store.
type TransactionEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TransactionID string    `json:"transactionId"`
	OwnerID       string    `json:"ownerId"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(typ EventType, transactionID, ownerID string) *TransactionEvent {
	return &TransactionEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		TransactionID: transactionID,
		OwnerID:       ownerID,
		Timestamp:     time.Now().UTC(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	switch evt.Type {
	case EventTransactionCreated, EventTransactionDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if evt.TransactionID == "" {
		return nil, errors.New("event without transaction id")
	}
	return &evt, nil
}
