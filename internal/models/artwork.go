package models

import (
	"strings"
	"time"
)

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// PendingIDPrefix marks evolutions that exist only as optimistic placeholders
// and have not been confirmed by a completed job.
const PendingIDPrefix = "pending-"

type Artwork struct {
	ID            string      `json:"id" yaml:"id"`
	OwnerID       string      `json:"ownerId" yaml:"ownerId"`
	Title         string      `json:"title" yaml:"title"`
	BaseImageURL  string      `json:"baseImageUrl" yaml:"baseImageUrl"`
	CoverImageURL string      `json:"coverImageUrl" yaml:"coverImageUrl"`
	Public        bool        `json:"public" yaml:"public"`
	CreatedAt     time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt" yaml:"updatedAt"`
	Tags          []string    `json:"tags" yaml:"tags"`
	Evolutions    []Evolution `json:"evolutions" yaml:"evolutions"`
	Size          Size        `json:"size" yaml:"size"`
}

type Evolution struct {
	ID        string           `json:"id" yaml:"id"`
	Step      int              `json:"step" yaml:"step"`
	Prompt    string           `json:"prompt" yaml:"prompt"`
	ImageURL  string           `json:"imageUrl" yaml:"imageUrl"`
	CreatedAt time.Time        `json:"createdAt" yaml:"createdAt"`
	Params    *EvolutionParams `json:"params,omitempty" yaml:"params,omitempty"`
}

// EvolutionParams is the generation configuration snapshot. Every field is
// optional; nil means "server default".
type EvolutionParams struct {
	Steps         *int     `json:"steps,omitempty" yaml:"steps,omitempty" binding:"omitempty,min=10,max=100"`
	GuidanceScale *float64 `json:"guidanceScale,omitempty" yaml:"guidanceScale,omitempty" binding:"omitempty,min=1,max=20"`
	Strength      *float64 `json:"strength,omitempty" yaml:"strength,omitempty" binding:"omitempty,min=0.1,max=1"`
	Seed          *int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// IsPending reports whether the evolution is an optimistic placeholder.
func (e Evolution) IsPending() bool {
	return strings.HasPrefix(e.ID, PendingIDPrefix)
}

// Clone returns a deep copy of the params.
func (p *EvolutionParams) Clone() *EvolutionParams {
	if p == nil {
		return nil
	}
	out := &EvolutionParams{}
	if p.Steps != nil {
		v := *p.Steps
		out.Steps = &v
	}
	if p.GuidanceScale != nil {
		v := *p.GuidanceScale
		out.GuidanceScale = &v
	}
	if p.Strength != nil {
		v := *p.Strength
		out.Strength = &v
	}
	if p.Seed != nil {
		v := *p.Seed
		out.Seed = &v
	}
	return out
}

// Clone returns a deep copy of the artwork. Cached artworks are shared
// snapshots, so anything that wants to change one must clone it first.
func (a *Artwork) Clone() *Artwork {
	if a == nil {
		return nil
	}
	out := *a
	if a.Tags != nil {
		out.Tags = append([]string(nil), a.Tags...)
	}
	if a.Evolutions != nil {
		out.Evolutions = make([]Evolution, len(a.Evolutions))
		for i, evo := range a.Evolutions {
			evo.Params = evo.Params.Clone()
			out.Evolutions[i] = evo
		}
	}
	return &out
}

// ConfirmedEvolutions counts evolutions that are not pending placeholders.
func (a *Artwork) ConfirmedEvolutions() int {
	n := 0
	for _, evo := range a.Evolutions {
		if !evo.IsPending() {
			n++
		}
	}
	return n
}

// NextStep is the count-based step number for the next evolution.
func (a *Artwork) NextStep() int {
	return a.ConfirmedEvolutions() + 1
}
