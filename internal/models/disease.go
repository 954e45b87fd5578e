package models

import (
	"time"
)

// ProtocolSection is one labelled block of a disease entry (scan, contrast, post-processing).
// Detail is rich text and stored verbatim; Image is base64 encoded.
type ProtocolSection struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Image  string `json:"image,omitempty"`
}

// Disease is a searchable disease entry with its associated protocols
type Disease struct {
	ID               int64           `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Description      string          `json:"description" db:"description"`
	Keywords         string          `json:"keywords" db:"keywords"`
	DescriptionImage string          `json:"description_image,omitempty" db:"description_image"`
	Scan             ProtocolSection `json:"scan"`
	Contrast         ProtocolSection `json:"contrast"`
	PostProcessing   ProtocolSection `json:"post_processing"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// DiseaseSummary is the list/search row for a disease
type DiseaseSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
}

// Summary returns the list row for d
func (d *Disease) Summary() DiseaseSummary {
	return DiseaseSummary{ID: d.ID, Name: d.Name, Keywords: d.Keywords}
}
