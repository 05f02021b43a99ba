package profile

import (
	"reflect"
	"testing"
)

func TestApplyScalarsOverwrite(t *testing.T) {
	p := Profile{Nickname: "old", Weight: 80}
	p.Apply(Delta{Scalars: map[string]any{
		"nickname": "new",
		"weight":   float64(75.5),
		"height":   "180",
	}})
	if p.Nickname != "new" {
		t.Fatalf("nickname = %q, want new", p.Nickname)
	}
	if p.Weight != 75.5 {
		t.Fatalf("weight = %v, want 75.5", p.Weight)
	}
	if p.Height != 180 {
		t.Fatalf("height = %v, want 180", p.Height)
	}
}

func TestApplyListsUnionDedup(t *testing.T) {
	p := Profile{Allergies: []string{"a", "b"}}
	p.Apply(Delta{Lists: map[string][]string{
		"allergies": {"b", "c"},
	}})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(p.Allergies, want) {
		t.Fatalf("allergies = %v, want %v", p.Allergies, want)
	}
}

func TestApplyMapsKeyWise(t *testing.T) {
	p := Profile{NutritionTargets: map[string]float64{"protein": 120, "fiber": 30}}
	p.Apply(Delta{Maps: map[string]map[string]string{
		"nutrition_targets":   {"protein": "140"},
		"extended_attributes": {"coach": "ai"},
	}})
	if p.NutritionTargets["protein"] != 140 {
		t.Fatalf("protein = %v, want 140", p.NutritionTargets["protein"])
	}
	if p.NutritionTargets["fiber"] != 30 {
		t.Fatalf("untouched key fiber = %v, want 30", p.NutritionTargets["fiber"])
	}
	if p.ExtendedAttributes["coach"] != "ai" {
		t.Fatalf("extended_attributes = %v", p.ExtendedAttributes)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	d := Delta{
		Scalars: map[string]any{"diet_goal": "cut", "weight": float64(70)},
		Lists:   map[string][]string{"health_goals": {"sleep", "steps"}},
		Maps:    map[string]map[string]string{"nutrition_targets": {"kcal": "2100"}},
	}

	once := Profile{HealthGoals: []string{"sleep"}}
	once.Apply(d)
	twice := Profile{HealthGoals: []string{"sleep"}}
	twice.Apply(d)
	twice.Apply(d)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("apply twice diverged:\nonce  %+v\ntwice %+v", once, twice)
	}
}

func TestApplyUnknownFieldsIgnored(t *testing.T) {
	p := Profile{}
	p.Apply(Delta{
		Scalars: map[string]any{"shoe_size": 44, "nickname": 12},
		Lists:   map[string][]string{"pets": {"cat"}},
		Maps:    map[string]map[string]string{"unknown": {"k": "v"}},
	})
	if !reflect.DeepEqual(p, Profile{}) {
		t.Fatalf("unknown fields mutated profile: %+v", p)
	}
}

func TestExtractDelta(t *testing.T) {
	content := `Great progress! Keep hydrating.
<profile_update>
{"scalars": {"fitness_level": "intermediate"}, "lists": {"allergies": ["peanuts"]}}
</profile_update>
Also noted your targets.
<profile_update>
{"lists": {"allergies": ["shellfish", "peanuts"]}, "maps": {"nutrition_targets": {"kcal": "2200"}}}
</profile_update>`

	d, ok := ExtractDelta(content)
	if !ok {
		t.Fatal("no delta extracted")
	}
	if d.Scalars["fitness_level"] != "intermediate" {
		t.Fatalf("scalars = %v", d.Scalars)
	}
	want := []string{"peanuts", "shellfish"}
	if !reflect.DeepEqual(d.Lists["allergies"], want) {
		t.Fatalf("allergies = %v, want %v", d.Lists["allergies"], want)
	}
	if d.Maps["nutrition_targets"]["kcal"] != "2200" {
		t.Fatalf("maps = %v", d.Maps)
	}
}

func TestExtractDeltaIgnoresMalformedBlocks(t *testing.T) {
	content := `<profile_update>{not json}</profile_update>
<profile_update>{"scalars": {"gender": "female"}}</profile_update>`

	d, ok := ExtractDelta(content)
	if !ok {
		t.Fatal("no delta extracted")
	}
	if d.Scalars["gender"] != "female" {
		t.Fatalf("scalars = %v", d.Scalars)
	}
}

func TestExtractDeltaAbsent(t *testing.T) {
	if _, ok := ExtractDelta("plain reply, nothing to mine"); ok {
		t.Fatal("extracted delta from plain text")
	}
	if _, ok := ExtractDelta("<profile_update>{broken</profile_update>"); ok {
		t.Fatal("extracted delta from malformed block")
	}
}
