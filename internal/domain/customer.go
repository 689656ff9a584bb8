package domain

import "github.com/AndreasM009/entitystore-go/store"

// Customer is a ticket buyer
type Customer struct {
	store.Model
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address,omitempty"`
}
