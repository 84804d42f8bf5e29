// Package generate builds blog artifacts from curated shortlists.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

const (
	defaultTitle   = "AI Insights Daily"
	defaultSummary = "Daily curated insights on AI and technology trends, breakthroughs, and business applications."
	defaultAuthor  = "Content Agent"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaceRuns    = regexp.MustCompile(`[\s_]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// Slugify converts a title into a URL-friendly slug of at most 100 runes.
func Slugify(text string) string {
	slug := strings.ToLower(text)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = spaceRuns.ReplaceAllString(slug, "-")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 100 {
		slug = slug[:100]
	}
	return slug
}

// BlogGenerator turns a curated shortlist into a blog post via the external
// generation collaborator.
type BlogGenerator struct {
	generator ports.Generator
	logger    *slog.Logger
}

// New builds a BlogGenerator.
func New(generator ports.Generator, logger *slog.Logger) *BlogGenerator {
	return &BlogGenerator{generator: generator, logger: logger}
}

// Generate produces a blog post from the shortlist. A header the generator
// failed to emit or that cannot be parsed falls back to defaults; only a
// failed generation call fails the operation.
func (g *BlogGenerator) Generate(ctx context.Context, items []domain.CuratedRecord, contextNote string) (domain.BlogPost, error) {
	if len(items) == 0 {
		return domain.BlogPost{}, fmt.Errorf("no curated records provided")
	}

	text, err := g.generator.GenerateBlog(ctx, items, contextNote)
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("generate blog: %w", err)
	}

	header, body := g.parseHeader(text)

	sourceItems := make([]string, 0, len(items))
	for _, item := range items {
		sourceItems = append(sourceItems, item.ID)
	}

	post := domain.BlogPost{
		ID:          uuid.NewString()[:8],
		Slug:        Slugify(header.Title),
		Header:      header,
		Content:     body,
		SourceItems: sourceItems,
		GeneratedAt: time.Now().UTC(),
	}

	g.logger.Info("generated blog post", "id", post.ID, "title", header.Title, "sources", len(sourceItems))
	return post, nil
}

// Filename returns the artifact file name for a post.
func Filename(post domain.BlogPost) string {
	return fmt.Sprintf("%s_%s.md", post.ID, post.Slug)
}

// parseHeader extracts the delimited YAML header block. Missing or broken
// headers produce a minimal default header rather than failing the stage.
func (g *BlogGenerator) parseHeader(text string) (domain.BlogHeader, string) {
	header := domain.BlogHeader{}
	body := text

	trimmed := strings.TrimLeft(text, "\n ")
	if strings.HasPrefix(trimmed, "---\n") {
		rest := trimmed[len("---\n"):]
		if end := strings.Index(rest, "\n---"); end >= 0 {
			block := rest[:end]
			if err := yaml.Unmarshal([]byte(block), &header); err != nil {
				g.logger.Warn("failed to parse generated header, using defaults", "error", err)
				header = domain.BlogHeader{}
			} else {
				after := rest[end+len("\n---"):]
				body = strings.TrimPrefix(after, "\n")
				body = strings.TrimLeft(body, "\n")
			}
		}
	}

	if header.Title == "" {
		header.Title = defaultTitle
	}
	if header.Summary == "" {
		header.Summary = defaultSummary
	}
	if len(header.Tags) == 0 {
		header.Tags = []string{"AI", "Technology"}
	}
	if header.Author == "" {
		header.Author = defaultAuthor
	}
	if header.Date.IsZero() {
		header.Date = time.Now().UTC()
	}

	return header, body
}
