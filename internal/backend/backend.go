// Package backend opens the configured store.Backend for an entity type.
package backend

import (
	"fmt"

	"github.com/AndreasM009/entitystore-go/store"
	"github.com/AndreasM009/entitystore-go/store/azure/cosmosdb"
	"github.com/AndreasM009/entitystore-go/store/azure/tablestorage"
	"github.com/AndreasM009/entitystore-go/store/inmemory"
	"github.com/AndreasM009/entitystore-go/store/sqlite"
)

const (
	InMemory     = "inmemory"
	SQLite       = "sqlite"
	TableStorage = "tablestorage"
	CosmosDB     = "cosmosdb"
)

var factories = map[string]func() store.Backend{
	InMemory:     inmemory.NewStore,
	SQLite:       sqlite.NewStore,
	TableStorage: tablestorage.NewStore,
	CosmosDB:     cosmosdb.NewStore,
}

// Open creates and initializes the backend named kind for entityType.
// Each entity type gets its own table, partition or map, derived from entityType.
func Open(kind string, properties map[string]string, entityType string) (store.Backend, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", kind)
	}

	b := factory()
	if err := b.Init(Metadata(kind, properties, entityType)); err != nil {
		return nil, fmt.Errorf("init %s backend for %s: %w", kind, entityType, err)
	}
	return b, nil
}

// Metadata copies properties and adds the per entity type keys the backend expects
func Metadata(kind string, properties map[string]string, entityType string) store.Metadata {
	props := make(map[string]string, len(properties)+2)
	for k, v := range properties {
		props[k] = v
	}

	switch kind {
	case SQLite:
		props[sqlite.TableKey] = entityType
	case TableStorage, CosmosDB:
		props["entityType"] = entityType
	}

	return store.Metadata{Properties: props}
}
