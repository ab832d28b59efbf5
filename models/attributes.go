package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dcode-github/agrirent/backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Category string

const (
	CategoryTractor   Category = "Tractor"
	CategoryHarvester Category = "Harvester"
	CategoryPump      Category = "Pump"
	CategoryTrailer   Category = "Trailer"
	CategorySprayer   Category = "Sprayer"
	CategoryWeeder    Category = "Weeder"
)

var Categories = []Category{
	CategoryTractor,
	CategoryHarvester,
	CategoryPump,
	CategoryTrailer,
	CategorySprayer,
	CategoryWeeder,
}

// ParseCategory accepts any casing of a known category name.
func ParseCategory(raw string) (Category, bool) {
	c := Category(cases.Title(language.English).String(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Attributes is the category specific part of a machine listing. Each
// category has its own typed variant.
type Attributes interface {
	Kind() Category
	apply(fields map[string]string)
}

type TractorAttributes struct {
	AttachmentType string `json:"attachment_type,omitempty" bson:"attachment_type,omitempty"`
}

type HarvesterAttributes struct {
	HarvesterType string `json:"harvester_type,omitempty" bson:"harvester_type,omitempty"`
	CropType      string `json:"crop_type,omitempty" bson:"crop_type,omitempty"`
}

type PumpAttributes struct {
	PumpType   string  `json:"pump_type,omitempty" bson:"pump_type,omitempty"`
	CapacityHP float64 `json:"capacity_hp" bson:"capacity_hp"`
}

type TrailerAttributes struct {
	TrailerType string `json:"trailer_type,omitempty" bson:"trailer_type,omitempty"`
	LoadType    string `json:"load_type,omitempty" bson:"load_type,omitempty"`
}

type SprayerAttributes struct {
	SprayerType  string  `json:"sprayer_type,omitempty" bson:"sprayer_type,omitempty"`
	TankCapacity float64 `json:"tank_capacity" bson:"tank_capacity"`
}

type WeederAttributes struct {
	WeederType string `json:"weeder_type,omitempty" bson:"weeder_type,omitempty"`
}

func (TractorAttributes) Kind() Category   { return CategoryTractor }
func (HarvesterAttributes) Kind() Category { return CategoryHarvester }
func (PumpAttributes) Kind() Category      { return CategoryPump }
func (TrailerAttributes) Kind() Category   { return CategoryTrailer }
func (SprayerAttributes) Kind() Category   { return CategorySprayer }
func (WeederAttributes) Kind() Category    { return CategoryWeeder }

func (a *TractorAttributes) apply(f map[string]string) {
	setString(&a.AttachmentType, f, "attachment_type")
}

func (a *HarvesterAttributes) apply(f map[string]string) {
	setString(&a.HarvesterType, f, "harvester_type")
	setString(&a.CropType, f, "crop_type")
}

func (a *PumpAttributes) apply(f map[string]string) {
	setString(&a.PumpType, f, "pump_type")
	setNumber(&a.CapacityHP, f, "capacity_hp")
}

func (a *TrailerAttributes) apply(f map[string]string) {
	setString(&a.TrailerType, f, "trailer_type")
	setString(&a.LoadType, f, "load_type")
}

func (a *SprayerAttributes) apply(f map[string]string) {
	setString(&a.SprayerType, f, "sprayer_type")
	setNumber(&a.TankCapacity, f, "tank_capacity")
}

func (a *WeederAttributes) apply(f map[string]string) {
	setString(&a.WeederType, f, "weeder_type")
}

func setString(dst *string, f map[string]string, key string) {
	if v, ok := f[key]; ok {
		*dst = strings.TrimSpace(v)
	}
}

func setNumber(dst *float64, f map[string]string, key string) {
	if v, ok := f[key]; ok {
		*dst = utils.ToFloat(v)
	}
}

func newAttributes(c Category) (Attributes, error) {
	switch c {
	case CategoryTractor:
		return &TractorAttributes{}, nil
	case CategoryHarvester:
		return &HarvesterAttributes{}, nil
	case CategoryPump:
		return &PumpAttributes{}, nil
	case CategoryTrailer:
		return &TrailerAttributes{}, nil
	case CategorySprayer:
		return &SprayerAttributes{}, nil
	case CategoryWeeder:
		return &WeederAttributes{}, nil
	}
	return nil, fmt.Errorf("unknown machine category %q", c)
}

// Meta carries the typed attributes of a listing. On the wire (JSON and
// BSON) it is a flat object with a "kind" discriminator next to the
// variant's own fields.
type Meta struct {
	Attributes
}

// BuildMeta creates the attribute variant for c from loosely typed form
// fields. Numeric fields that fail to parse become zero.
func BuildMeta(c Category, fields map[string]string) (Meta, error) {
	attrs, err := newAttributes(c)
	if err != nil {
		return Meta{}, err
	}
	attrs.apply(fields)
	return Meta{attrs}, nil
}

// Merge returns m updated with fields. A category change replaces the
// variant entirely.
func (m Meta) Merge(c Category, fields map[string]string) (Meta, error) {
	if m.Attributes == nil || m.Kind() != c {
		return BuildMeta(c, fields)
	}
	// round-trip through JSON for a detached copy of the current variant
	raw, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	var cp Meta
	if err := json.Unmarshal(raw, &cp); err != nil {
		return Meta{}, err
	}
	cp.apply(fields)
	return cp, nil
}

type metaHead struct {
	Kind Category `json:"kind" bson:"kind"`
}

func (m Meta) MarshalJSON() ([]byte, error) {
	if m.Attributes == nil {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(m.Attributes)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["kind"] = m.Kind()
	return json.Marshal(fields)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var head metaHead
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Kind == "" {
		m.Attributes = nil
		return nil
	}
	attrs, err := newAttributes(head.Kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, attrs); err != nil {
		return err
	}
	m.Attributes = attrs
	return nil
}

func (m Meta) MarshalBSON() ([]byte, error) {
	if m.Attributes == nil {
		return bson.Marshal(bson.D{})
	}
	body, err := bson.Marshal(m.Attributes)
	if err != nil {
		return nil, err
	}
	var fields bson.D
	if err := bson.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	doc := append(bson.D{{Key: "kind", Value: string(m.Kind())}}, fields...)
	return bson.Marshal(doc)
}

func (m *Meta) UnmarshalBSON(data []byte) error {
	var head metaHead
	if err := bson.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Kind == "" {
		m.Attributes = nil
		return nil
	}
	attrs, err := newAttributes(head.Kind)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(data, attrs); err != nil {
		return err
	}
	m.Attributes = attrs
	return nil
}
