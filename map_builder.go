package mapedit

import (
	"github.com/google/uuid"
)

// DefaultTraceLimit bounds the number of steps a single face-recovery loop
// trace may take before it is abandoned.
const DefaultTraceLimit = 100000

// MapBuilder configures and constructs a Map.
type MapBuilder struct {
	cellSize   float64
	traceLimit int
	logger     Logger
	observers  []MapObserver
}

func NewMapBuilder() *MapBuilder {
	return &MapBuilder{
		cellSize:   DefaultCellSize,
		traceLimit: DefaultTraceLimit,
	}
}

// UseCellSize overrides the spatial grid cell size.
func (b *MapBuilder) UseCellSize(size float64) *MapBuilder {
	b.cellSize = size
	return b
}

// UseTraceLimit overrides the face-recovery loop guard.
func (b *MapBuilder) UseTraceLimit(limit int) *MapBuilder {
	b.traceLimit = limit
	return b
}

// UseLogger overrides the default logger.
func (b *MapBuilder) UseLogger(l Logger) *MapBuilder {
	b.logger = l
	return b
}

// UseObserver registers a change observer.
func (b *MapBuilder) UseObserver(o MapObserver) *MapBuilder {
	b.observers = append(b.observers, o)
	return b
}

// Build constructs an empty map.
func (b *MapBuilder) Build() *Map {
	logger := b.logger
	if logger == nil {
		logger = NewDefaultLogger("mapedit", false)
	}
	m := &Map{
		vertexMap:     make(map[string]*Vertex),
		lineMap:       make(map[string]*Line),
		modifiedLines: make(map[*Line]struct{}),
		selection:     make(map[Entity]struct{}),
		grid:          NewSpatialGrid(b.cellSize),
		history:       NewHistory(),
		observers:     b.observers,
		traceLimit:    b.traceLimit,
		log:           logger,
	}
	m.Metadata.Id = MapId(uuid.NewString())
	return m
}

// NewMap constructs an empty map with default configuration.
func NewMap() *Map {
	return NewMapBuilder().Build()
}
