package models

import "strings"

// EvolveRequest asks for a new evolution of an artwork. It is never stored.
type EvolveRequest struct {
	ArtworkID string           `json:"artworkId" binding:"required"`
	Prompt    string           `json:"prompt" binding:"required"`
	Params    *EvolutionParams `json:"params,omitempty"`
}

// Normalize trims the prompt the same way the prompt form does before submit.
func (r EvolveRequest) Normalize() EvolveRequest {
	r.ArtworkID = strings.TrimSpace(r.ArtworkID)
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Params = r.Params.Clone()
	return r
}
