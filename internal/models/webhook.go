package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JournalID accepts a ledger journal identifier encoded as a JSON string or number.
type JournalID string

func (id *JournalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = JournalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("journal id must be a string or number: %w", err)
	}
	*id = JournalID(n.String())
	return nil
}

// WebhookEvent is the body the ledger posts when a transaction is stored
type WebhookEvent struct {
	UUID    string         `json:"uuid,omitempty"`
	Trigger string         `json:"trigger,omitempty"`
	Content WebhookContent `json:"content"`
}

type WebhookContent struct {
	Transactions []WebhookTransaction `json:"transactions"`
}

// WebhookTransaction is one split of a ledger transaction. Description is a
// pointer so a missing key can be told apart from an empty string. Category
// is the name currently assigned in the ledger, if any.
type WebhookTransaction struct {
	JournalID   JournalID `json:"transaction_journal_id"`
	Description *string   `json:"description"`
	Category    string    `json:"category_name,omitempty"`
}

// WebhookStatus is the status reported back to the ledger's dispatcher.
type WebhookStatus string

const (
	StatusCategoryUpdated WebhookStatus = "category_updated"
	StatusIgnored         WebhookStatus = "ignored"
	StatusError           WebhookStatus = "error"
)

// WebhookResponse summarizes how an event was handled
type WebhookResponse struct {
	Status        WebhookStatus `json:"status"`
	Category      string        `json:"category"`
	Confidence    float64       `json:"confidence"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Detail        string        `json:"detail,omitempty"`
}
