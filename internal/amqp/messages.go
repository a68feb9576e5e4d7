package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"housesplit/internal/core"
)

// Actions carried by ExpenseChangedMessage.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionImport = "import"
)

// ExpenseChangedMessage announces that expenses in the listed months changed.
// Consumers recompute whatever they derive from those months; the message
// does not carry the expenses themselves.
type ExpenseChangedMessage struct {
	Action     string          `json:"action"`
	ExpenseIDs []int64         `json:"expense_ids"`
	MonthKeys  []core.MonthKey `json:"month_keys"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewExpenseChangedMessage builds a message with duplicate months removed.
func NewExpenseChangedMessage(action string, ids []int64, months ...core.MonthKey) *ExpenseChangedMessage {
	seen := make(map[core.MonthKey]bool, len(months))
	unique := make([]core.MonthKey, 0, len(months))
	for _, m := range months {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		unique = append(unique, m)
	}
	return &ExpenseChangedMessage{
		Action:     action,
		ExpenseIDs: ids,
		MonthKeys:  unique,
		Timestamp:  time.Now(),
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes a message and checks its month keys.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	for _, k := range msg.MonthKeys {
		if _, err := core.ParseMonthKey(string(k)); err != nil {
			return nil, fmt.Errorf("month key %q: %w", k, err)
		}
	}
	return &msg, nil
}
