// Package models defines the content-addressed artifact records.
package models

import (
	"time"

	id "dealkernel/pkg/domain"
)

// Artifact is one immutable stored blob, addressed by its SHA-256. Uploading
// the same bytes twice yields the same artifact; content is never updated in
// place.
type Artifact struct {
	ID         id.ArtifactID `json:"id"`
	SHA256Hex  string        `json:"sha256"`
	Size       int64         `json:"size"`
	MimeType   string        `json:"mimeType"`
	UploaderID id.ActorID    `json:"uploaderId"`
	CreatedAt  time.Time     `json:"createdAt"`

	// Content is populated on upload and download paths only; listings and
	// proof packs carry metadata and hashes, not bytes.
	Content []byte `json:"-"`
}

// Link ties an artifact to a deal, and optionally to the specific event or
// material it evidences, so proof packs know which blobs belong to which
// authority trail.
type Link struct {
	ID         id.LinkID      `json:"id"`
	ArtifactID id.ArtifactID  `json:"artifactId"`
	DealID     id.DealID      `json:"dealId"`
	EventID    *id.EventID    `json:"eventId,omitempty"`
	MaterialID *id.MaterialID `json:"materialId,omitempty"`
	Tag        string         `json:"tag,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
