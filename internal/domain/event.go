package domain

import (
	"github.com/AndreasM009/entitystore-go/store"
	"github.com/shopspring/decimal"
)

// Event is something tickets are sold for
type Event struct {
	store.Model
	Name          string          `json:"name"`
	Location      string          `json:"location"`
	TotalCapacity int64           `json:"totalCapacity"`
	LeftCapacity  int64           `json:"leftCapacity"`
	TicketPrice   decimal.Decimal `json:"ticketPrice"`
}
