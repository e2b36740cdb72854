package mcpserver

// RecordFormatContract describes the canonical Markdown record format that
// LLM consumers should follow when saving records.
const RecordFormatContract = `# Ansuz Record Format Contract

Every record stored in Ansuz is a Markdown file with YAML frontmatter.

## Structure

` + "```" + `markdown
---
id: 4f06f9a8-0c1e-4a2b-9a57-2a1f7f3d9e10   # assigned by the server; omit when saving
type: article                               # REQUIRED – note, journal, article, video, social-post, image
title: Human-readable title                 # REQUIRED – used in search and listings
created: 2025-01-15T09:30:00Z               # assigned by the server
updated: 2025-01-15T09:30:00Z               # assigned by the server
tags:                                       # OPTIONAL – YAML list
  - tag-one
  - tag-two
links:                                      # OPTIONAL – ids of related records
  - 7c2b1d90-5e44-4f0a-8c33-91d2ab6f0c55
category: engineering                       # OPTIONAL – defaults to "uncategorized"
source_url: https://example.com/post        # OPTIONAL – where the content came from
author: Jane Doe                            # OPTIONAL
gist: One-sentence summary.                 # OPTIONAL
status: saved                               # saved, read, or archived
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `type` + "`" + ` and ` + "`" + `title` + "`" + ` are required.** Type must be one of the six
   listed values.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `distributed-systems` + "`" + `).
4. **Links** reference other records by id, never by file path.
5. **File paths** are derived by the server from type, category, creation date
   and a slug of the title. Do not choose paths yourself.
6. **Status** transitions saved -> read -> archived; new records start as saved.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
id: 4f06f9a8-0c1e-4a2b-9a57-2a1f7f3d9e10
type: note
title: RRF score fusion
created: 2025-01-15T09:30:00Z
updated: 2025-01-15T09:30:00Z
tags:
  - search
  - ranking
category: engineering
status: saved
---

Reciprocal rank fusion combines per-retriever rank lists by summing
1/(k + rank) for each list a document appears in.
` + "```" + `
`
