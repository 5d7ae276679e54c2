package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budget/internal/core"
)

type EventKind string

const (
	ItemCreated EventKind = "item.created"
	ItemDeleted EventKind = "item.deleted"
)

// ItemEvent announces a change to a budget item. Deletions carry only the id.
type ItemEvent struct {
	Kind      EventKind    `json:"kind"`
	ItemID    int64        `json:"item_id"`
	Item      *ItemPayload `json:"item,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type ItemPayload struct {
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItemCreatedEvent snapshots item into a creation event.
func NewItemCreatedEvent(item core.BudgetItem) *ItemEvent {
	return &ItemEvent{
		Kind:   ItemCreated,
		ItemID: item.ID,
		Item: &ItemPayload{
			Category:  item.Category,
			Amount:    item.Amount,
			Currency:  item.Currency,
			Type:      item.Type.String(),
			CreatedAt: item.CreatedAt,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewItemDeletedEvent(id int64) *ItemEvent {
	return &ItemEvent{
		Kind:      ItemDeleted,
		ItemID:    id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ItemEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ItemEventFromJSON decodes an event and rejects unknown kinds.
func ItemEventFromJSON(data []byte) (*ItemEvent, error) {
	var e ItemEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Kind {
	case ItemCreated, ItemDeleted:
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return &e, nil
}
