// Package domain holds identifier types shared across the deal kernel.
//
// Every entity gets its own uuid-backed ID type so a DealID can never be
// passed where an ActorID is expected. Stores and handlers parse IDs at the
// boundary and pass typed values inward.
package domain

import "github.com/google/uuid"

// DealID identifies a deal.
type DealID uuid.UUID

// ActorID identifies an actor registered on a deal.
type ActorID uuid.UUID

// EventID identifies a ledger event.
type EventID uuid.UUID

// MaterialID identifies a material (evidence) record.
type MaterialID uuid.UUID

// ArtifactID identifies a content-addressed artifact.
type ArtifactID uuid.UUID

// LinkID identifies an artifact link.
type LinkID uuid.UUID

func (id DealID) String() string     { return uuid.UUID(id).String() }
func (id ActorID) String() string    { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }
func (id MaterialID) String() string { return uuid.UUID(id).String() }
func (id ArtifactID) String() string { return uuid.UUID(id).String() }
func (id LinkID) String() string     { return uuid.UUID(id).String() }

func (id DealID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MaterialID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ArtifactID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

// NewDealID returns a fresh random deal ID.
func NewDealID() DealID { return DealID(uuid.New()) }

// NewActorID returns a fresh random actor ID.
func NewActorID() ActorID { return ActorID(uuid.New()) }

// NewEventID returns a fresh random event ID.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewMaterialID returns a fresh random material ID.
func NewMaterialID() MaterialID { return MaterialID(uuid.New()) }

// NewArtifactID returns a fresh random artifact ID.
func NewArtifactID() ArtifactID { return ArtifactID(uuid.New()) }

// NewLinkID returns a fresh random link ID.
func NewLinkID() LinkID { return LinkID(uuid.New()) }

// ParseDealID parses a deal ID from its string form.
func ParseDealID(s string) (DealID, error) {
	u, err := uuid.Parse(s)
	return DealID(u), err
}

// ParseActorID parses an actor ID from its string form.
func ParseActorID(s string) (ActorID, error) {
	u, err := uuid.Parse(s)
	return ActorID(u), err
}

// ParseEventID parses an event ID from its string form.
func ParseEventID(s string) (EventID, error) {
	u, err := uuid.Parse(s)
	return EventID(u), err
}

// ParseMaterialID parses a material ID from its string form.
func ParseMaterialID(s string) (MaterialID, error) {
	u, err := uuid.Parse(s)
	return MaterialID(u), err
}

// ParseArtifactID parses an artifact ID from its string form.
func ParseArtifactID(s string) (ArtifactID, error) {
	u, err := uuid.Parse(s)
	return ArtifactID(u), err
}

// MarshalText makes IDs render as canonical uuid strings in JSON.
func (id DealID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id MaterialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ArtifactID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id LinkID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

// UnmarshalText parses IDs from canonical uuid strings in JSON.
func (id *DealID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = DealID(u)
	return err
}

func (id *ActorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ActorID(u)
	return err
}

func (id *EventID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = EventID(u)
	return err
}

func (id *MaterialID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = MaterialID(u)
	return err
}

func (id *ArtifactID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ArtifactID(u)
	return err
}

func (id *LinkID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = LinkID(u)
	return err
}
