package index

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"contentagent/internal/domain"
)

// keywordDocument is the shape indexed into bleve for keyword search.
type keywordDocument struct {
	Title   string
	Content string
	Author  string
	Source  string
}

func buildKeywordMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", titleField)
	docMapping.AddFieldMappingsAt("Content", textField)
	docMapping.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Source", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func openKeywordIndex(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildKeywordMapping())
		if err != nil {
			return nil, fmt.Errorf("create keyword index: %w", err)
		}
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return idx, nil
}

func (c *Cache) indexKeyword(r domain.InboxRecord) error {
	return c.keyword.Index(r.ID, keywordDocument{
		Title:   r.Title,
		Content: r.Content,
		Author:  r.AuthorName,
		Source:  string(r.Source),
	})
}

// resetKeywordIndex drops the on-disk bleve index and recreates it empty.
func (c *Cache) resetKeywordIndex() error {
	if c.keyword != nil {
		if err := c.keyword.Close(); err != nil {
			return fmt.Errorf("close keyword index: %w", err)
		}
	}
	if err := os.RemoveAll(c.keywordPath); err != nil {
		return fmt.Errorf("remove keyword index: %w", err)
	}

	idx, err := openKeywordIndex(c.keywordPath)
	if err != nil {
		return err
	}
	c.keyword = idx
	return nil
}

// searchKeywordIDs runs a bleve query-string search and returns matching
// record IDs with their bleve scores.
func (c *Cache) searchKeywordIDs(query string, limit int) (map[string]float64, []string, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	res, err := c.keyword.Search(req)
	if err != nil {
		return nil, nil, fmt.Errorf("keyword search: %w", err)
	}

	scores := make(map[string]float64, len(res.Hits))
	order := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
		order = append(order, hit.ID)
	}
	return scores, order, nil
}
