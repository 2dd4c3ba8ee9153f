package mapedit

// EventKind tags a change notification.
type EventKind int

const (
	EventVertexAdded EventKind = iota
	EventVertexRemoved
	EventLineAdded
	EventLineRemoved
	EventSectorAdded
	EventSectorRemoved
	EventThingAdded
	EventThingRemoved
	EventSideChanged
	EventFlagsChanged
	EventSectorChanged
	EventMetadataChanged
	EventSectorsRebuilt
	EventSelect
	EventDeselect
)

// MapEvent is a tagged change notification. Only the fields relevant to the
// Kind are populated; Map always is.
type MapEvent struct {
	Kind EventKind
	Map  *Map

	Vertex *Vertex
	Line   *Line
	Sector *Sector
	Thing  *Thing

	// For EventSideChanged, EventFlagsChanged, EventSectorChanged and
	// EventMetadataChanged.
	Property string
	IsFront  bool
	Value    any

	// For EventSectorsRebuilt.
	Sectors []*Sector

	// For EventSelect.
	Selection []Entity
}

// MapObserver receives change notifications synchronously. Observers must
// not mutate the map from within MapChanged; the map panics if they try.
type MapObserver interface {
	MapChanged(ev MapEvent)
}

// ObserverFunc adapts a plain function to the MapObserver interface.
type ObserverFunc func(ev MapEvent)

func (f ObserverFunc) MapChanged(ev MapEvent) {
	f(ev)
}
