// Package profile holds the persisted user profile and the mergeable delta
// extracted from conversations.
package profile

import "strconv"

// Profile mirrors what the diet/fitness product knows about a user. List
// fields behave as sets, map fields merge key-wise.
type Profile struct {
	Nickname     string  `json:"nickname,omitempty"`
	Gender       string  `json:"gender,omitempty"`
	Height       float64 `json:"height,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
	FitnessLevel string  `json:"fitness_level,omitempty"`
	DietGoal     string  `json:"diet_goal,omitempty"`

	HealthGoals         []string `json:"health_goals,omitempty"`
	FavoriteCuisines    []string `json:"favorite_cuisines,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	PreferredExercises  []string `json:"preferred_exercises,omitempty"`
	FitnessGoals        []string `json:"fitness_goals,omitempty"`

	NutritionTargets   map[string]float64 `json:"nutrition_targets,omitempty"`
	ExtendedAttributes map[string]string  `json:"extended_attributes,omitempty"`
}

// Delta is a structured set of changes mined from a conversation. Scalars
// overwrite, lists union with duplicates removed, maps merge key-wise with
// untouched keys preserved. Applying the same delta twice equals applying it
// once.
type Delta struct {
	Scalars map[string]any               `json:"scalars,omitempty"`
	Lists   map[string][]string          `json:"lists,omitempty"`
	Maps    map[string]map[string]string `json:"maps,omitempty"`
}

func (d Delta) Empty() bool {
	return len(d.Scalars) == 0 && len(d.Lists) == 0 && len(d.Maps) == 0
}

func (p *Profile) Apply(d Delta) {
	for field, v := range d.Scalars {
		p.applyScalar(field, v)
	}
	for field, vals := range d.Lists {
		if target := p.listField(field); target != nil {
			*target = unionStable(*target, vals)
		}
	}
	for field, m := range d.Maps {
		p.applyMap(field, m)
	}
}

func (p *Profile) applyScalar(field string, v any) {
	switch field {
	case "nickname":
		if s, ok := v.(string); ok {
			p.Nickname = s
		}
	case "gender":
		if s, ok := v.(string); ok {
			p.Gender = s
		}
	case "height":
		if f, ok := toFloat(v); ok {
			p.Height = f
		}
	case "weight":
		if f, ok := toFloat(v); ok {
			p.Weight = f
		}
	case "fitness_level":
		if s, ok := v.(string); ok {
			p.FitnessLevel = s
		}
	case "diet_goal":
		if s, ok := v.(string); ok {
			p.DietGoal = s
		}
	}
}

func (p *Profile) listField(field string) *[]string {
	switch field {
	case "health_goals":
		return &p.HealthGoals
	case "favorite_cuisines":
		return &p.FavoriteCuisines
	case "dietary_restrictions":
		return &p.DietaryRestrictions
	case "allergies":
		return &p.Allergies
	case "preferred_exercises":
		return &p.PreferredExercises
	case "fitness_goals":
		return &p.FitnessGoals
	}
	return nil
}

func (p *Profile) applyMap(field string, m map[string]string) {
	switch field {
	case "nutrition_targets":
		if p.NutritionTargets == nil {
			p.NutritionTargets = map[string]float64{}
		}
		for k, v := range m {
			if f, ok := toFloat(v); ok {
				p.NutritionTargets[k] = f
			}
		}
	case "extended_attributes":
		if p.ExtendedAttributes == nil {
			p.ExtendedAttributes = map[string]string{}
		}
		for k, v := range m {
			p.ExtendedAttributes[k] = v
		}
	}
}

// unionStable keeps existing order and appends unseen values in the order
// given.
func unionStable(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range incoming {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
