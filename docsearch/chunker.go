// Package docsearch implements the docs-search integration: a build step
// that chunks a markdown tree and uploads it to a Moss index, and a runtime
// step that answers queries from a local in-memory index with a remote
// fallback.
package docsearch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	moss "github.com/inferedge/moss-go"
)

// DefaultMaxChunkLen is the character budget per chunk. Sections longer
// than this are split at paragraph boundaries.
const DefaultMaxChunkLen = 1600

// Chunk is one indexable slice of a markdown document.
type Chunk struct {
	ID     string // stable: <path>#<anchor>[-<n>]
	Path   string // source file, relative to the docs root
	Title  string // nearest heading text
	Anchor string // slug of Title
	Text   string
}

// Hash returns a content hash used by the sync manifest to detect changes.
func (c Chunk) Hash() string {
	sum := sha256.Sum256([]byte(c.Title + "\x00" + c.Text))
	return hex.EncodeToString(sum[:])
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// ChunkMarkdown splits markdown content into heading-delimited chunks.
// Text before the first heading becomes a chunk with an empty title.
// Sections exceeding maxLen are split further at blank lines; each part
// keeps the section title and gets a numbered ID suffix.
func ChunkMarkdown(content, path string, maxLen int) []Chunk {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLen
	}

	type section struct {
		title string
		body  []string
	}

	var sections []section
	current := section{}
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			current.body = append(current.body, line)
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil && !inFence {
			if len(strings.TrimSpace(strings.Join(current.body, "\n"))) > 0 {
				sections = append(sections, current)
			}
			current = section{title: strings.TrimSpace(m[2])}
			continue
		}
		current.body = append(current.body, line)
	}
	if len(strings.TrimSpace(strings.Join(current.body, "\n"))) > 0 {
		sections = append(sections, current)
	}

	var chunks []Chunk
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.body, "\n"))
		anchor := slugify(sec.title)
		parts := splitByLen(body, maxLen)
		for i, part := range parts {
			id := path + "#" + anchor
			if len(parts) > 1 {
				id = fmt.Sprintf("%s-%d", id, i+1)
			}
			chunks = append(chunks, Chunk{
				ID:     id,
				Path:   path,
				Title:  sec.title,
				Anchor: anchor,
				Text:   part,
			})
		}
	}
	return chunks
}

// splitByLen splits text at blank lines so no part exceeds maxLen. A single
// paragraph longer than maxLen becomes its own oversized part rather than
// being cut mid-sentence.
func splitByLen(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	var parts []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			parts = append(parts, s)
		}
		buf.Reset()
	}

	for _, p := range paragraphs {
		if buf.Len() > 0 && buf.Len()+len(p)+2 > maxLen {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	flush()
	return parts
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "intro"
	}
	return s
}

// ToDocuments converts chunks into Moss documents. Metadata carries the
// source path, title and anchor so the widget can deep-link results.
func ToDocuments(chunks []Chunk) []moss.Document {
	docs := make([]moss.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = moss.Document{
			ID:   c.ID,
			Text: c.Text,
			Metadata: map[string]string{
				"path":   c.Path,
				"title":  c.Title,
				"anchor": c.Anchor,
			},
		}
	}
	return docs
}
