// Package models defines the domain types for Ansuz.
package models

import "time"

// Type classifies a knowledge record. The set is closed; unknown values are
// rejected at the write path and skipped during scans.
type Type string

// Known record types.
const (
	TypeNote       Type = "note"
	TypeJournal    Type = "journal"
	TypeArticle    Type = "article"
	TypeVideo      Type = "video"
	TypeSocialPost Type = "social-post"
	TypeImage      Type = "image"
)

// Types lists every valid record type.
var Types = []Type{TypeNote, TypeJournal, TypeArticle, TypeVideo, TypeSocialPost, TypeImage}

// Valid reports whether t is a known record type.
func (t Type) Valid() bool {
	for _, k := range Types {
		if t == k {
			return true
		}
	}
	return false
}

// Status tracks the record lifecycle: saved → read → archived.
type Status string

// Record lifecycle states.
const (
	StatusSaved    Status = "saved"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// DefaultCategory is used when a record carries no category.
const DefaultCategory = "uncategorized"

// Record is one knowledge item: structured metadata plus an opaque
// Markdown body. ID is the join key across all stores and is immutable.
type Record struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Title       string    `json:"title"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Tags        []string  `json:"tags"`
	Links       []string  `json:"links"`
	Category    string    `json:"category"`
	SourceURL   string    `json:"source_url,omitempty"`
	Author      string    `json:"author,omitempty"`
	Gist        string    `json:"gist,omitempty"`
	Status      Status    `json:"status,omitempty"`
	InputSource string    `json:"input_source,omitempty"`

	// Image-specific fields, empty for other types.
	ImagePath string `json:"image_path,omitempty"`
	OCRText   string `json:"ocr_text,omitempty"`

	Body string `json:"body"`
}
