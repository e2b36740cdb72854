package api

import (
	"time"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/search"
)

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Tags        []string `json:"tags"`
	Links       []string `json:"links"`
	Category    string   `json:"category"`
	SourceURL   string   `json:"source_url"`
	Author      string   `json:"author"`
	Gist        string   `json:"gist"`
	Status      string   `json:"status"`
	InputSource string   `json:"input_source"`
	ImagePath   string   `json:"image_path"`
	OCRText     string   `json:"ocr_text"`
}

// UpdateRecordRequest carries partial metadata for a record update. Absent
// fields are left unchanged.
type UpdateRecordRequest struct {
	Title       *string   `json:"title"`
	Body        *string   `json:"body"`
	Tags        *[]string `json:"tags"`
	Links       *[]string `json:"links"`
	Category    *string   `json:"category"`
	SourceURL   *string   `json:"source_url"`
	Author      *string   `json:"author"`
	Gist        *string   `json:"gist"`
	Status      *string   `json:"status"`
	InputSource *string   `json:"input_source"`
	ImagePath   *string   `json:"image_path"`
	OCRText     *string   `json:"ocr_text"`
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem struct {
	ID       string        `json:"id"`
	Type     models.Type   `json:"type"`
	Title    string        `json:"title"`
	Category string        `json:"category"`
	Status   models.Status `json:"status,omitempty"`
	Tags     []string      `json:"tags"`
	Created  time.Time     `json:"created"`
	Updated  time.Time     `json:"updated"`
}

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results"`
}

// RelatedResponse wraps related-record ids.
type RelatedResponse struct {
	Related []string `json:"related"`
}

// ReconcileResponse reports the stats of a reconciliation pass.
type ReconcileResponse struct {
	Stats reconcile.Stats `json:"stats"`
}
