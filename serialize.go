package mapedit

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Neutral serialization records. Lines and sector boundaries reference
// vertices by index into the vertex array; the stable "x,y" and
// "x0,y0:x1,y1" key forms are reconstructed on load.

type metadataRecord struct {
	Id     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Author string `json:"author,omitempty"`
}

type vertexRecord [2]int

type sideRecord struct {
	UpperTexture  string `json:"upper_texture,omitempty"`
	MiddleTexture string `json:"middle_texture,omitempty"`
	LowerTexture  string `json:"lower_texture,omitempty"`
	OffsetX       int    `json:"offset_x,omitempty"`
	OffsetY       int    `json:"offset_y,omitempty"`
}

type flagsRecord struct {
	Impassable    bool `json:"impassable,omitempty"`
	TwoSided      bool `json:"two_sided,omitempty"`
	UpperUnpegged bool `json:"upper_unpegged,omitempty"`
	LowerUnpegged bool `json:"lower_unpegged,omitempty"`
	Secret        bool `json:"secret,omitempty"`
	BlockSound    bool `json:"block_sound,omitempty"`
	DontDraw      bool `json:"dont_draw,omitempty"`
}

type lineRecord struct {
	V0    int         `json:"v0"`
	V1    int         `json:"v1"`
	Front sideRecord  `json:"front"`
	Back  sideRecord  `json:"back"`
	Flags flagsRecord `json:"flags"`
}

type propertiesRecord struct {
	FloorHeight    int    `json:"floor_height"`
	CeilingHeight  int    `json:"ceiling_height"`
	FloorTexture   string `json:"floor_texture,omitempty"`
	CeilingTexture string `json:"ceiling_texture,omitempty"`
	LightLevel     int    `json:"light_level"`
	Tag            int    `json:"tag,omitempty"`
	Special        int    `json:"special,omitempty"`
}

type sectorLineRecord struct {
	V0    int  `json:"v0"`
	V1    int  `json:"v1"`
	Front bool `json:"front"`
}

type sectorRecord struct {
	Properties propertiesRecord   `json:"properties"`
	Lines      []sectorLineRecord `json:"lines"`
}

type thingRecord struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Z     int `json:"z"`
	Type  int `json:"type"`
	Angle int `json:"angle"`
}

type mapRecord struct {
	Metadata metadataRecord `json:"metadata"`
	Vertices []vertexRecord `json:"vertices"`
	Lines    []lineRecord   `json:"lines"`
	Sectors  []sectorRecord `json:"sectors"`
	Things   []thingRecord  `json:"things"`
}

func sideToRecord(s *Side) sideRecord {
	return sideRecord{
		UpperTexture:  s.UpperTexture,
		MiddleTexture: s.MiddleTexture,
		LowerTexture:  s.LowerTexture,
		OffsetX:       s.OffsetX,
		OffsetY:       s.OffsetY,
	}
}

func sideFromRecord(r sideRecord) Side {
	return Side{
		UpperTexture:  r.UpperTexture,
		MiddleTexture: r.MiddleTexture,
		LowerTexture:  r.LowerTexture,
		OffsetX:       r.OffsetX,
		OffsetY:       r.OffsetY,
	}
}

// Serialize encodes the map as neutral JSON. The encoding round-trips: a
// Deserialize of the output reproduces equal vertex, line, sector and thing
// sets.
func (m *Map) Serialize() ([]byte, error) {
	rec := mapRecord{
		Metadata: metadataRecord{
			Id:     string(m.Metadata.Id),
			Name:   m.Metadata.Name,
			Author: m.Metadata.Author,
		},
	}

	index := make(map[*Vertex]int, len(m.vertices))
	for i, v := range m.vertices {
		index[v] = i
		rec.Vertices = append(rec.Vertices, vertexRecord{v.X, v.Y})
	}

	for _, l := range m.lines {
		rec.Lines = append(rec.Lines, lineRecord{
			V0:    index[l.V0],
			V1:    index[l.V1],
			Front: sideToRecord(&l.Front),
			Back:  sideToRecord(&l.Back),
			Flags: flagsRecord(l.Flags),
		})
	}

	for _, s := range m.sectors {
		sr := sectorRecord{Properties: propertiesRecord(s.Properties)}
		for i, bl := range s.Lines {
			sr.Lines = append(sr.Lines, sectorLineRecord{
				V0:    index[bl.V0],
				V1:    index[bl.V1],
				Front: s.FrontSides[i],
			})
		}
		rec.Sectors = append(rec.Sectors, sr)
	}

	for _, t := range m.things {
		rec.Things = append(rec.Things, thingRecord{X: t.X, Y: t.Y, Z: t.Z, Type: t.Type, Angle: t.Angle})
	}

	return json.Marshal(&rec)
}

// Deserialize clears the map and rebuilds it from neutral JSON in the order
// vertices, lines, sectors, things, then runs a full rebuild so parent and
// child links and open-side references are re-established. The history is
// reset.
func (m *Map) Deserialize(data []byte) error {
	var rec mapRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("mapedit: deserialize: %w", err)
	}

	m.clearAll()

	m.Metadata.Id = MapId(rec.Metadata.Id)
	m.Metadata.Name = rec.Metadata.Name
	m.Metadata.Author = rec.Metadata.Author

	verts := make([]*Vertex, len(rec.Vertices))
	for i, vr := range rec.Vertices {
		if _, ok := m.vertexMap[vertexKey(vr[0], vr[1])]; ok {
			return fmt.Errorf("mapedit: deserialize: duplicate vertex %s", vertexKey(vr[0], vr[1]))
		}
		v := &Vertex{X: vr[0], Y: vr[1]}
		m.attachVertex(v)
		verts[i] = v
	}

	resolve := func(i int) (*Vertex, error) {
		if i < 0 || i >= len(verts) {
			return nil, fmt.Errorf("mapedit: deserialize: vertex index %d out of range", i)
		}
		return verts[i], nil
	}

	for _, lr := range rec.Lines {
		va, err := resolve(lr.V0)
		if err != nil {
			return err
		}
		vb, err := resolve(lr.V1)
		if err != nil {
			return err
		}
		if va == vb {
			return fmt.Errorf("mapedit: deserialize: zero-length line at %s", va.Key())
		}
		if _, ok := m.lineMap[lineKeyV(va, vb)]; ok {
			return fmt.Errorf("mapedit: deserialize: duplicate line %s", lineKeyV(va, vb))
		}
		l := &Line{
			V0:    va,
			V1:    vb,
			Front: sideFromRecord(lr.Front),
			Back:  sideFromRecord(lr.Back),
			Flags: LineFlags(lr.Flags),
		}
		m.attachLine(l)
	}

	for _, sr := range rec.Sectors {
		s := &Sector{Properties: SectorProperties(sr.Properties)}
		for _, d := range sr.Lines {
			va, err := resolve(d.V0)
			if err != nil {
				return err
			}
			vb, err := resolve(d.V1)
			if err != nil {
				return err
			}
			l := m.lineMap[lineKeyV(va, vb)]
			if l == nil {
				return fmt.Errorf("mapedit: deserialize: sector references missing line %s", lineKeyV(va, vb))
			}
			front := d.Front
			if l.V0 != va {
				front = !front
			}
			s.Lines = append(s.Lines, l)
			s.FrontSides = append(s.FrontSides, front)
			origin := l.V1
			if front {
				origin = l.V0
			}
			s.FlatXY = append(s.FlatXY, float64(origin.X), float64(origin.Y))
			l.Side(front).Sector = s
		}
		m.sectors = append(m.sectors, s)
		m.grid.Insert(s)
	}

	for _, tr := range rec.Things {
		m.attachThing(&Thing{X: tr.X, Y: tr.Y, Z: tr.Z, Type: tr.Type, Angle: tr.Angle})
	}

	for _, l := range m.lines {
		m.markModified(l)
	}
	m.rebuildSectors()
	m.history.Clear()
	return nil
}

// clearAll resets all geometry, selection, history and the spatial grid,
// keeping configuration and observers.
func (m *Map) clearAll() {
	m.vertices = nil
	m.lines = nil
	m.sectors = nil
	m.things = nil
	m.vertexMap = make(map[string]*Vertex)
	m.lineMap = make(map[string]*Line)
	m.modifiedLines = make(map[*Line]struct{})
	m.selection = make(map[Entity]struct{})
	m.grid = NewSpatialGrid(m.grid.cellSize)
	m.history.Clear()
}
