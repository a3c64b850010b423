package plugins

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"filecms/core"

	"emperror.dev/errors"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/char/html"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/gin-gonic/gin"
)

const (
	pageAnalyzer = "page"

	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

type SearchResult struct {
	Url   string `json:"url"`
	Title string `json:"title"`
	Score int    `json:"score"`
}

// indexed form of a rendered page
type searchDocument struct {
	Title string `json:"title"`
	Url   string `json:"url"`
	Body  string `json:"body"`
}

// BuiltinSearchPlugin keeps a full-text index of the rendered pages,
// download records included
type BuiltinSearchPlugin struct {
	index bleve.Index
	fm    *core.FileManager
	mu    sync.RWMutex
}

func newSearchMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(pageAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"char_filters":  []string{html.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	title := bleve.NewTextFieldMapping()
	title.Store = true

	url := bleve.NewKeywordFieldMapping()
	url.Store = true
	url.IncludeInAll = false

	body := bleve.NewTextFieldMapping()
	body.Analyzer = pageAnalyzer
	body.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", title)
	doc.AddFieldMappingsAt("url", url)
	doc.AddFieldMappingsAt("body", body)

	im.DefaultMapping = doc
	return im, nil
}

// NewSearchPlugin creates the plugin with an in-memory index. Hits are
// checked against fm, pages removed from the site are not returned.
func NewSearchPlugin(fm *core.FileManager) (*BuiltinSearchPlugin, error) {
	im, err := newSearchMapping()
	if err != nil {
		return nil, errors.WrapIf(err, "failed to build search mapping")
	}

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to create search index")
	}
	return &BuiltinSearchPlugin{index: index, fm: fm}, nil
}

func (p *BuiltinSearchPlugin) Name() string {
	return "builtin/search"
}

func (p *BuiltinSearchPlugin) Priority() int {
	return 1000 // Run last
}

func (p *BuiltinSearchPlugin) CanProcess(file *core.File) bool {
	if !IsContent(file) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	return ext == ".txt" || ext == ".md" || ext == ".markdown" || ext == ".html" || ext == ".htm"
}

func (p *BuiltinSearchPlugin) Process(ctx *core.PluginContext) *core.PluginResult {
	// nothing rendered, e.g. an invalid record, drops an earlier version
	if ctx.File.Content == nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.index.Delete(ctx.File.Path); err != nil {
			return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
		}
		return &core.PluginResult{Success: true}
	}

	doc := searchDocument{
		Title: ctx.File.Metadata.Title,
		Url:   ContentRoute(ctx.File.Path),
		Body:  string(ctx.File.Content),
	}
	if len(ctx.File.Routes) > 0 {
		doc.Url = ctx.File.Routes[0]
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.index.Index(ctx.File.Path, doc); err != nil {
		return &core.PluginResult{Error: core.NewPluginError(p.Name(), ctx.File.Path, err)}
	}
	return &core.PluginResult{Success: true}
}

// GetSearchResults searches the index for a query string
func (p *BuiltinSearchPlugin) GetSearchResults(query string, limit int) ([]SearchResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// over-fetch a little, stale hits are dropped below
	searchRequest := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	searchRequest.Size = limit * 2
	searchRequest.Fields = []string{"title", "url"}

	searchResults, err := p.index.Search(searchRequest)
	if err != nil {
		return nil, errors.WrapIf(err, "search failed")
	}

	results := make([]SearchResult, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		if p.fm != nil && p.fm.GetFile(hit.ID) == nil {
			continue
		}

		result := SearchResult{Url: hit.ID, Score: int(hit.Score * 1000)}
		if url, ok := hit.Fields["url"].(string); ok {
			result.Url = url
		}
		if title, ok := hit.Fields["title"].(string); ok {
			result.Title = title
		}
		results = append(results, result)

		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// Handler answers GET /search?q=<query>&limit=<n> with the hits as JSON
func (p *BuiltinSearchPlugin) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
			return
		}

		limit := defaultSearchLimit
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = min(n, maxSearchLimit)
		}

		results, err := p.GetSearchResults(query, limit)
		if err != nil {
			core.Warn("search for %q failed: %v", query, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query": query,
			"hits":  results,
		})
	}
}

// Close releases the index
func (p *BuiltinSearchPlugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index.Close()
}
