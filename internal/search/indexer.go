package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

// Document is the search representation of a published article.
type Document struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	AuthorID    string     `json:"author_id"`
	CategoryID  string     `json:"category_id,omitempty"`
	Tags        []string   `json:"tags"`
	Price       int64      `json:"price"`
	IsFree      bool       `json:"is_free"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	IndexedAt   time.Time  `json:"indexed_at"`
}

func ToDocument(a domain.Article, now time.Time) Document {
	doc := Document{
		ID:          a.ID.String(),
		Title:       a.Title,
		Summary:     a.Summary,
		Body:        a.Body,
		AuthorID:    a.AuthorID.String(),
		Tags:        a.Tags,
		PublishedAt: a.PublishedAt,
		IndexedAt:   now,
	}
	if a.CategoryID != nil {
		doc.CategoryID = a.CategoryID.String()
	}
	if a.Pricing != nil {
		doc.Price = a.Pricing.Price
		doc.IsFree = a.Pricing.IsFree
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return doc
}

type Indexer struct {
	client    *elasticsearch.TypedClient
	indexName string
}

func newClient(cfg Config) (*elasticsearch.TypedClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	return elasticsearch.NewTypedClient(esCfg)
}

// NewIndexer connects to Elasticsearch and makes sure the index exists.
func NewIndexer(ctx context.Context, cfg Config) (*Indexer, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	idx := &Indexer{client: client, indexName: cfg.IndexName}
	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}
	return idx, nil
}

// Index upserts the article under its own id.
func (i *Indexer) Index(ctx context.Context, a domain.Article) error {
	doc := ToDocument(a, time.Now().UTC())
	res, err := i.client.Index(i.indexName).Id(doc.ID).Document(doc).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index article %s: %w", doc.ID, err)
	}
	slog.Info("Article indexed", "id", doc.ID, "index", i.indexName, "result", res.Result)
	return nil
}

func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.client.Indices.Exists(i.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		slog.Info("Index already exists", "index", i.indexName)
		return nil
	}

	settings := types.IndexSettings{
		Analysis: &types.IndexSettingsAnalysis{
			Analyzer: map[string]types.Analyzer{
				"article_analyzer": types.StandardAnalyzer{
					Stopwords: []string{"_none_"},
				},
			},
		},
	}
	mappings := types.TypeMapping{
		Properties: map[string]types.Property{
			"id":           types.NewKeywordProperty(),
			"title":        textProperty("article_analyzer", true),
			"summary":      textProperty("article_analyzer", false),
			"body":         textProperty("article_analyzer", false),
			"author_id":    types.NewKeywordProperty(),
			"category_id":  types.NewKeywordProperty(),
			"tags":         types.NewKeywordProperty(),
			"price":        types.NewLongNumberProperty(),
			"is_free":      types.NewBooleanProperty(),
			"published_at": types.NewDateProperty(),
			"indexed_at":   types.NewDateProperty(),
		},
	}

	res, err := i.client.Indices.Create(i.indexName).
		Settings(&settings).
		Mappings(&mappings).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("index creation was not acknowledged")
	}
	slog.Info("Index created successfully", "index", i.indexName)
	return nil
}

func textProperty(analyzer string, keyword bool) types.Property {
	p := types.NewTextProperty()
	if analyzer != "" {
		p.Analyzer = &analyzer
	}
	if keyword {
		p.Fields = map[string]types.Property{
			"keyword": types.NewKeywordProperty(),
		}
	}
	return p
}

func (i *Indexer) Name() string {
	return "elasticsearch"
}

func (i *Indexer) Healthy(ctx context.Context) bool {
	ok, err := i.client.Ping().Do(ctx)
	return err == nil && ok
}
