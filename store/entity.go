package store

// Identifiable is implemented by every entity the store persists
type Identifiable interface {
	GetID() int64
	SetID(id int64)
	GetVersion() int64
	SetVersion(version int64)
}

// EntityPtr constrains P to be a pointer to T that carries an identity
type EntityPtr[T any] interface {
	*T
	Identifiable
}

// Model is embedded by domain types to make them storable
type Model struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
}

// GetID returns the identifier, 0 for entities that were never saved
func (m *Model) GetID() int64 { return m.ID }

// SetID sets the identifier
func (m *Model) SetID(id int64) { m.ID = id }

// GetVersion returns the version the entity was loaded or saved with
func (m *Model) GetVersion() int64 { return m.Version }

// SetVersion sets the version
func (m *Model) SetVersion(version int64) { m.Version = version }
