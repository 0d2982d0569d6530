package ledger

import (
	"errors"
	"fmt"
)

// Entity identifies one of the five dashboard tables. The value is the
// remote table name and the key used on the wire.
type Entity string

const (
	EntityBankBalance Entity = "bank_balance"
	EntityExpenses    Entity = "expenses"
	EntitySales       Entity = "sales"
	EntityOrders      Entity = "orders"
	EntityReminders   Entity = "reminders"
)

var ErrUnknownEntity = errors.New("unknown entity")

// entityOrder fixes the order sections appear on the dashboard.
var entityOrder = []Entity{
	EntityBankBalance,
	EntityExpenses,
	EntitySales,
	EntityOrders,
	EntityReminders,
}

// Entities returns all entities in dashboard order.
func Entities() []Entity {
	out := make([]Entity, len(entityOrder))
	copy(out, entityOrder)
	return out
}

// aliases accepted on the command line in addition to the table names.
var aliases = map[string]Entity{
	"bank":     EntityBankBalance,
	"balance":  EntityBankBalance,
	"expense":  EntityExpenses,
	"sale":     EntitySales,
	"order":    EntityOrders,
	"reminder": EntityReminders,
}

// ParseEntity maps a user-supplied name to an Entity.
func ParseEntity(s string) (Entity, error) {
	if _, ok := schemas[Entity(s)]; ok {
		return Entity(s), nil
	}
	if e, ok := aliases[s]; ok {
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Kind describes how a field's raw input is normalized.
type Kind int

const (
	// KindMoney is a monetary amount, normalized to a float.
	KindMoney Kind = iota
	// KindCount is a non-monetary counter, normalized to an integer.
	KindCount
	// KindText is free text.
	KindText
	// KindDate is a day-precision date, normalized to "2006-01-02".
	KindDate
)

// Field is one editable column of an entity.
type Field struct {
	Name  string
	Kind  Kind
	Label string
}

// Schema describes one entity: its tracked fields and the texts the
// dashboard uses for it.
type Schema struct {
	Entity Entity
	Title  string
	Fields []Field

	// Toast texts shown after a save attempt.
	SavedMessage     string
	SaveErrorMessage string
}

// HasField reports whether name is a tracked field of the schema.
func (s Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

var schemas = map[Entity]Schema{
	EntityBankBalance: {
		Entity: EntityBankBalance,
		Title:  "Bank Balance",
		Fields: []Field{
			{Name: "amount", Kind: KindMoney, Label: "Amount"},
		},
		SavedMessage:     "Bank balance saved",
		SaveErrorMessage: "Error saving bank balance",
	},
	EntityExpenses: {
		Entity: EntityExpenses,
		Title:  "Expenses",
		Fields: []Field{
			{Name: "amount", Kind: KindMoney, Label: "Amount"},
			{Name: "month", Kind: KindText, Label: "Month"},
		},
		SavedMessage:     "Expenses saved",
		SaveErrorMessage: "Error saving expenses",
	},
	EntitySales: {
		Entity: EntitySales,
		Title:  "Sales",
		Fields: []Field{
			{Name: "amount", Kind: KindMoney, Label: "Amount"},
		},
		SavedMessage:     "Sales saved",
		SaveErrorMessage: "Error saving sales",
	},
	EntityOrders: {
		Entity: EntityOrders,
		Title:  "Orders",
		Fields: []Field{
			{Name: "total_orders", Kind: KindCount, Label: "Total"},
			{Name: "pending", Kind: KindCount, Label: "Pending"},
			{Name: "completed", Kind: KindCount, Label: "Completed"},
		},
		SavedMessage:     "Orders saved",
		SaveErrorMessage: "Error saving orders",
	},
	EntityReminders: {
		Entity: EntityReminders,
		Title:  "Reminders",
		Fields: []Field{
			{Name: "title", Kind: KindText, Label: "Title"},
			{Name: "due_date", Kind: KindDate, Label: "Due date"},
		},
		SavedMessage:     "Reminder saved",
		SaveErrorMessage: "Error saving reminder",
	},
}

// SchemaOf returns the schema of a known entity. It panics on an unknown
// entity; callers go through ParseEntity for user input.
func SchemaOf(e Entity) Schema {
	s, ok := schemas[e]
	if !ok {
		panic(fmt.Sprintf("ledger: no schema for entity %q", e))
	}
	return s
}
