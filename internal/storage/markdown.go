package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"contentagent/internal/domain"
)

const headerDelimiter = "---\n"

// MarkdownStore writes generated artifacts as markdown files with a
// delimited YAML header block.
type MarkdownStore struct {
	root string
}

// NewMarkdownStore creates the store rooted at the given directory.
func NewMarkdownStore(root string) *MarkdownStore {
	return &MarkdownStore{root: root}
}

func (m *MarkdownStore) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.root, rel)
}

// WriteBlogPost renders the header block and body and writes the file
// atomically via a temp sibling and rename.
func (m *MarkdownStore) WriteBlogPost(rel string, post domain.BlogPost) error {
	header, err := yaml.Marshal(post.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	full := headerDelimiter + string(header) + headerDelimiter + post.Content

	path := m.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(full), 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}

	return nil
}

// ReadBlogPost parses a blog artifact back into header and body. A file
// without a header block yields the whole content as body.
func (m *MarkdownStore) ReadBlogPost(rel string) (domain.BlogPost, error) {
	raw, err := os.ReadFile(m.resolve(rel))
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("read blog post: %w", err)
	}

	content := string(raw)
	post := domain.BlogPost{}

	if !strings.HasPrefix(content, headerDelimiter) {
		post.Content = content
		return post, nil
	}

	rest := content[len(headerDelimiter):]
	end := strings.Index(rest, headerDelimiter)
	if end < 0 {
		post.Content = content
		return post, nil
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &post.Header); err != nil {
		return domain.BlogPost{}, fmt.Errorf("parse header: %w", err)
	}
	post.Content = rest[end+len(headerDelimiter):]

	return post, nil
}
