package policy

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed data/corpus.md
var defaultCorpus []byte

// ErrEmptyCorpus is returned when a corpus has no "## " sections.
var ErrEmptyCorpus = errors.New("policy: corpus has no sections")

// Chunk is a retrievable piece of policy text.
type Chunk struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score,omitempty"`
}

// Corpus is a markdown policy document split on "## " headings.
type Corpus struct {
	sections []Chunk
	byTitle  map[string]int
}

// ParseCorpus splits markdown into sections. Text before the first "## "
// heading is dropped.
func ParseCorpus(md []byte) (*Corpus, error) {
	c := &Corpus{byTitle: make(map[string]int)}
	var (
		title string
		body  strings.Builder
	)
	flush := func() {
		if title == "" {
			return
		}
		c.byTitle[strings.ToLower(title)] = len(c.sections)
		c.sections = append(c.sections, Chunk{
			ID:     slug(title),
			Title:  title,
			Text:   title + "\n\n" + strings.TrimSpace(body.String()),
			Source: "corpus",
		})
	}

	sc := bufio.NewScanner(bytes.NewReader(md))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "## ") {
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			body.Reset()
			continue
		}
		if title != "" {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("policy: read corpus: %w", err)
	}
	flush()

	if len(c.sections) == 0 {
		return nil, ErrEmptyCorpus
	}
	return c, nil
}

// LoadCorpus reads a markdown policy document from path.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read corpus %q: %w", path, err)
	}
	return ParseCorpus(data)
}

// DefaultCorpus returns the embedded California personal auto policy.
func DefaultCorpus() *Corpus {
	c, err := ParseCorpus(defaultCorpus)
	if err != nil {
		panic(err)
	}
	return c
}

// Sections returns every section in document order.
func (c *Corpus) Sections() []Chunk {
	out := make([]Chunk, len(c.sections))
	copy(out, c.sections)
	return out
}

// Section returns the section titled title (case-insensitive).
func (c *Corpus) Section(title string) (Chunk, bool) {
	i, ok := c.byTitle[strings.ToLower(title)]
	if !ok {
		return Chunk{}, false
	}
	return c.sections[i], true
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
