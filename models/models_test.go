package models

import (
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestParseCategory(t *testing.T) {
	cases := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"tractor", CategoryTractor, true},
		{" PUMP ", CategoryPump, true},
		{"Sprayer", CategorySprayer, true},
		{"boat", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseCategory(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseCategory(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestBuildMetaCoercesNumbers(t *testing.T) {
	m, err := BuildMeta(CategoryPump, map[string]string{"pump_type": "Diesel", "capacity_hp": "seven"})
	if err != nil {
		t.Fatalf("BuildMeta: %v", err)
	}
	p, ok := m.Attributes.(*PumpAttributes)
	if !ok {
		t.Fatalf("attributes type = %T", m.Attributes)
	}
	if p.PumpType != "Diesel" || p.CapacityHP != 0 {
		t.Errorf("pump = %+v", p)
	}

	if _, err := BuildMeta(Category("Boat"), nil); err == nil {
		t.Error("unknown category accepted")
	}
}

func TestMetaJSONWireFormat(t *testing.T) {
	m, _ := BuildMeta(CategorySprayer, map[string]string{"sprayer_type": "Boom", "tank_capacity": "200"})

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("Unmarshal flat: %v", err)
	}
	if flat["kind"] != "Sprayer" || flat["sprayer_type"] != "Boom" || flat["tank_capacity"] != float64(200) {
		t.Errorf("wire = %s", raw)
	}

	var back Meta
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	s, ok := back.Attributes.(*SprayerAttributes)
	if !ok || s.TankCapacity != 200 {
		t.Errorf("decoded = %#v", back.Attributes)
	}

	var empty Meta
	if err := json.Unmarshal([]byte(`{}`), &empty); err != nil || empty.Attributes != nil {
		t.Errorf("empty meta = %#v, %v", empty.Attributes, err)
	}
}

func TestMetaBSONInsideMachine(t *testing.T) {
	meta, _ := BuildMeta(CategoryHarvester, map[string]string{"harvester_type": "Self-propelled", "crop_type": "Paddy"})
	in := Machine{Name: "H1", Type: CategoryHarvester, Meta: meta, RentPerHour: 900}

	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	var out Machine
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("bson.Unmarshal: %v", err)
	}
	h, ok := out.Meta.Attributes.(*HarvesterAttributes)
	if !ok || h.CropType != "Paddy" || h.HarvesterType != "Self-propelled" {
		t.Errorf("decoded meta = %#v", out.Meta.Attributes)
	}
}

func TestMetaMerge(t *testing.T) {
	meta, _ := BuildMeta(CategoryTrailer, map[string]string{"trailer_type": "Hydraulic", "load_type": "Sand"})

	same, err := meta.Merge(CategoryTrailer, map[string]string{"load_type": "Grain"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	tr := same.Attributes.(*TrailerAttributes)
	if tr.TrailerType != "Hydraulic" || tr.LoadType != "Grain" {
		t.Errorf("merged = %+v", tr)
	}
	if meta.Attributes.(*TrailerAttributes).LoadType != "Sand" {
		t.Error("merge mutated the original")
	}

	switched, _ := meta.Merge(CategoryWeeder, map[string]string{"weeder_type": "Mini"})
	if switched.Kind() != CategoryWeeder {
		t.Errorf("kind after switch = %s", switched.Kind())
	}
}

func TestRentalOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := Rental{StartTime: base, EndTime: base.Add(2 * time.Hour)}

	if r.Overlaps(base.Add(2*time.Hour), base.Add(3*time.Hour)) {
		t.Error("back-to-back after flagged as overlap")
	}
	if r.Overlaps(base.Add(-time.Hour), base) {
		t.Error("back-to-back before flagged as overlap")
	}
	if !r.Overlaps(base.Add(time.Hour), base.Add(3*time.Hour)) {
		t.Error("partial overlap missed")
	}
	if !r.Overlaps(base.Add(30*time.Minute), base.Add(time.Hour)) {
		t.Error("contained interval missed")
	}
}

func TestNumericCondition(t *testing.T) {
	c := NumericCondition{Field: "rentPerHour", Op: "gte", Value: 100}
	if !c.Match(100) || c.Match(99.9) {
		t.Error("gte mismatch")
	}
	if (NumericCondition{Op: "bogus"}).Match(1) {
		t.Error("unknown op matched")
	}
}
