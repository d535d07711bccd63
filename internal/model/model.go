// Package model loads live model descriptors: the per-character JSON files
// that map emotion tokens to renderer expression IDs and name the motion
// groups a renderer can play.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Descriptor describes one live model. It is immutable for the lifetime of a
// session: mutating methods return copies and loaders return fresh values.
type Descriptor struct {
	// CharacterName is the display name sent to renderers alongside speech.
	CharacterName string `json:"character_name"`

	// ModelURL is the renderer-resolvable location of the model asset.
	ModelURL string `json:"model_url"`

	// Avatar is an optional avatar image reference shown in chat overlays.
	Avatar string `json:"avatar"`

	// EmotionMap maps lowercase emotion tokens (e.g. "joy") to non-negative
	// renderer expression IDs.
	EmotionMap map[string]int `json:"emotion_map"`

	// MotionGroups maps motion group names to the motion indices available
	// in each group, in renderer order.
	MotionGroups map[string][]int `json:"motion_groups"`
}

// Default returns the built-in descriptor used when no model file is
// configured. Its emotion map covers the tokens the default persona prompt
// instructs the agent to emit.
func Default() *Descriptor {
	return &Descriptor{
		CharacterName: "Kuro",
		EmotionMap: map[string]int{
			"neutral":  0,
			"anger":    2,
			"disgust":  2,
			"fear":     1,
			"joy":      3,
			"smirk":    3,
			"sadness":  1,
			"surprise": 3,
		},
		MotionGroups: map[string][]int{
			"idle": {0, 1, 2},
			"tap":  {0, 1},
		},
	}
}

// Load reads a descriptor from a JSON file and validates it.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read %q: %w", path, err)
	}
	var d Descriptor
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("model: parse %q: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("model: %q: %w", path, err)
	}
	return &d, nil
}

// Validate checks descriptor invariants.
func (d *Descriptor) Validate() error {
	var errs []error
	if d.CharacterName == "" {
		errs = append(errs, errors.New("character_name must not be empty"))
	}
	for token, id := range d.EmotionMap {
		if token != strings.ToLower(token) {
			errs = append(errs, fmt.Errorf("emotion token %q must be lowercase", token))
		}
		if strings.ContainsAny(token, "[]") {
			errs = append(errs, fmt.Errorf("emotion token %q must not contain brackets", token))
		}
		if id < 0 {
			errs = append(errs, fmt.Errorf("emotion %q: expression ID must be non-negative, got %d", token, id))
		}
	}
	for group, indices := range d.MotionGroups {
		if group == "" {
			errs = append(errs, errors.New("motion group name must not be empty"))
		}
		for _, idx := range indices {
			if idx < 0 {
				errs = append(errs, fmt.Errorf("motion group %q: index must be non-negative, got %d", group, idx))
			}
		}
	}
	return errors.Join(errs...)
}

// ExpressionID resolves an emotion token to its expression ID.
func (d *Descriptor) ExpressionID(token string) (int, bool) {
	id, ok := d.EmotionMap[strings.ToLower(token)]
	return id, ok
}

// HasMotion reports whether the group contains the given motion index.
func (d *Descriptor) HasMotion(group string, index int) bool {
	for _, idx := range d.MotionGroups[group] {
		if idx == index {
			return true
		}
	}
	return false
}
