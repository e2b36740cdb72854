package filestore

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

// frontmatter is the typed on-disk header. Field names are part of the file
// format contract; readers tolerate missing optional fields.
type frontmatter struct {
	ID          string   `yaml:"id"`
	Type        string   `yaml:"type"`
	Title       string   `yaml:"title"`
	Created     string   `yaml:"created"`
	Updated     string   `yaml:"updated"`
	Tags        []string `yaml:"tags"`
	Links       []string `yaml:"links"`
	Category    string   `yaml:"category"`
	SourceURL   string   `yaml:"source_url,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	Gist        string   `yaml:"gist,omitempty"`
	Status      string   `yaml:"status,omitempty"`
	InputSource string   `yaml:"inputSource,omitempty"`
	ImagePath   string   `yaml:"image_path,omitempty"`
	OCRText     string   `yaml:"ocr_text,omitempty"`
}

const fmDelim = "---"

// Encode renders a record as YAML frontmatter followed by the Markdown body.
func Encode(rec *models.Record) ([]byte, error) {
	fm := frontmatter{
		ID:          rec.ID,
		Type:        string(rec.Type),
		Title:       rec.Title,
		Created:     rec.Created.UTC().Format(time.RFC3339),
		Updated:     rec.Updated.UTC().Format(time.RFC3339),
		Tags:        rec.Tags,
		Links:       rec.Links,
		Category:    rec.Category,
		SourceURL:   rec.SourceURL,
		Author:      rec.Author,
		Gist:        rec.Gist,
		Status:      string(rec.Status),
		InputSource: rec.InputSource,
		ImagePath:   rec.ImagePath,
		OCRText:     rec.OCRText,
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	if fm.Links == nil {
		fm.Links = []string{}
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("filestore: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fmDelim + "\n")
	buf.Write(header)
	buf.WriteString(fmDelim + "\n\n")
	buf.WriteString(rec.Body)
	if !strings.HasSuffix(rec.Body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// Decode parses a record file. It returns (nil, nil) for content that is not
// a valid record (no frontmatter, bad YAML, or missing id) — callers treat
// that as "absent", never as a hard failure.
func Decode(data []byte) (*models.Record, error) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(fmDelim)) {
		return nil, nil
	}

	rest := trimmed[len(fmDelim):]
	idx := bytes.Index(rest, []byte("\n"+fmDelim))
	if idx < 0 {
		return nil, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, nil
	}
	if fm.ID == "" {
		// id is the join key across all stores; a record without one
		// cannot be indexed.
		return nil, nil
	}

	body := strings.TrimLeft(string(rest[idx+1+len(fmDelim):]), "\n\r")

	rec := &models.Record{
		ID:          fm.ID,
		Type:        models.Type(fm.Type),
		Title:       fm.Title,
		Created:     parseTime(fm.Created),
		Updated:     parseTime(fm.Updated),
		Tags:        fm.Tags,
		Links:       fm.Links,
		Category:    fm.Category,
		SourceURL:   fm.SourceURL,
		Author:      fm.Author,
		Gist:        fm.Gist,
		Status:      models.Status(fm.Status),
		InputSource: fm.InputSource,
		ImagePath:   fm.ImagePath,
		OCRText:     fm.OCRText,
		Body:        body,
	}
	if rec.Category == "" {
		rec.Category = models.DefaultCategory
	}
	return rec, nil
}

// parseTime accepts RFC 3339 timestamps and bare dates; anything else
// yields the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// maxSlugLen caps slug length so paths stay manageable.
const maxSlugLen = 60

// Slugify lowercases the title, collapses non-alphanumeric runs to single
// hyphens, trims leading/trailing hyphens, and caps the length.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = nonAlnumRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// RecordPath builds the canonical relative path for a record:
// {type}/{category}/{YYYY-MM-DD}-{slug}.md.
func RecordPath(rec *models.Record) string {
	category := rec.Category
	if category == "" {
		category = models.DefaultCategory
	}
	date := rec.Created.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s/%s/%s-%s.md", rec.Type, category, date, Slugify(rec.Title))
}
