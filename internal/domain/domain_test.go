package domain

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/AndreasM009/entitystore-go/store/inmemory"
)

func TestEventRoundTrip(t *testing.T) {
	backend := inmemory.NewStore()
	require.NoError(t, backend.Init(store.Metadata{}))
	repo := store.NewRepository[Event](backend)
	ctx := context.Background()

	ev, err := repo.Save(ctx, &Event{
		Name:          "Concert",
		Location:      "Arena",
		TotalCapacity: 100,
		LeftCapacity:  100,
		TicketPrice:   decimal.RequireFromString("49.90"),
	})
	require.NoError(t, err)

	found, ok, err := repo.FindByID(ctx, ev.ID)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.True(t, found.TicketPrice.Equal(decimal.RequireFromString("49.9")))
	assert.Equal(t, "Arena", found.Location)
}
