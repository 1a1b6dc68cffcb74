package driver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meilisearch/meilisearch-go"
)

var (
	filterableAttributes = []interface{}{"category", "tags", "author", "language", "created_at_ts"}
	sortableAttributes   = []string{"created_at_ts", "view_count", "like_count", "id"}
	// Attribute order ranks title matches above body matches.
	searchableAttributes = []string{"title", "title_analyzed", "title_exact", "tags", "body_analyzed"}
	rankingRules         = []string{"words", "typo", "proximity", "attribute", "sort", "exactness", "created_at_ts:desc", "id:asc"}
)

const taskPollInterval = 50 * time.Millisecond

type MeilisearchDriver struct {
	client      meilisearch.ServiceManager
	index       meilisearch.IndexManager
	taskTimeout time.Duration
}

func NewMeilisearchDriver(client meilisearch.ServiceManager, indexName string, taskTimeout time.Duration) *MeilisearchDriver {
	return &MeilisearchDriver{
		client:      client,
		index:       client.Index(indexName),
		taskTimeout: taskTimeout,
	}
}

// waitForTask polls the task until it settles or taskTimeout elapses.
func (d *MeilisearchDriver) waitForTask(ctx context.Context, op string, taskUID int64) error {
	ctx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()
	task, err := d.index.WaitForTaskWithContext(ctx, taskUID, taskPollInterval)
	if err != nil {
		return newDriverError(op, err)
	}
	if task.Status == meilisearch.TaskStatusFailed {
		return &DriverError{Op: op, Err: "task failed: " + task.Error.Message}
	}
	return nil
}

func (d *MeilisearchDriver) AddDocuments(ctx context.Context, docs []PostDocument) error {
	if len(docs) == 0 {
		return nil
	}

	task, err := d.index.AddDocuments(docs, nil)
	if err != nil {
		return newDriverError("AddDocuments", err)
	}
	return d.waitForTask(ctx, "AddDocuments", task.TaskUID)
}

func (d *MeilisearchDriver) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	task, err := d.index.DeleteDocuments(ids, nil)
	if err != nil {
		return newDriverError("DeleteDocuments", err)
	}
	return d.waitForTask(ctx, "DeleteDocuments", task.TaskUID)
}

func (d *MeilisearchDriver) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	req := &meilisearch.SearchRequest{
		Query:            p.Query,
		ShowRankingScore: true,
	}
	// Page-aligned windows use page/hitsPerPage so the total is exhaustive.
	if p.Limit > 0 && p.Offset%p.Limit == 0 {
		req.Page = p.Offset/p.Limit + 1
		req.HitsPerPage = p.Limit
	} else {
		req.Offset = p.Offset
		req.Limit = p.Limit
	}
	if p.Filter != "" {
		req.Filter = p.Filter
	}
	if len(p.Sort) > 0 {
		req.Sort = p.Sort
	}

	resp, err := d.index.SearchWithContext(ctx, p.Query, req)
	if err != nil {
		return nil, newDriverError("Search", err)
	}

	hits, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, &DriverError{Op: "Search", Err: "decode hits: " + err.Error()}
	}

	total := resp.TotalHits
	if total == 0 {
		total = resp.EstimatedTotalHits
	}
	return &SearchResult{Hits: hits, Total: total}, nil
}

func (d *MeilisearchDriver) GetDocument(ctx context.Context, id string) (*PostDocument, error) {
	var doc PostDocument
	if err := d.index.GetDocument(id, &meilisearch.DocumentQuery{}, &doc); err != nil {
		return nil, newDriverError("GetDocument", err)
	}
	return &doc, nil
}

// ListChecksums pages through every document fetching only id and checksum.
func (d *MeilisearchDriver) ListChecksums(ctx context.Context, pageSize int64) (map[string]string, error) {
	out := make(map[string]string)
	for offset := int64(0); ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, newDriverError("ListChecksums", err)
		}

		var page meilisearch.DocumentsResult
		err := d.index.GetDocuments(&meilisearch.DocumentsQuery{
			Offset: offset,
			Limit:  pageSize,
			Fields: []string{"id", "checksum"},
		}, &page)
		if err != nil {
			return nil, newDriverError("ListChecksums", err)
		}

		docs, err := decodeHits(page.Results)
		if err != nil {
			return nil, &DriverError{Op: "ListChecksums", Err: "decode documents: " + err.Error()}
		}
		for _, doc := range docs {
			out[doc.ID] = doc.Checksum
		}
		if int64(len(docs)) < pageSize {
			return out, nil
		}
	}
}

func (d *MeilisearchDriver) Count(ctx context.Context) (int64, error) {
	stats, err := d.index.GetStats()
	if err != nil {
		return 0, newDriverError("Count", err)
	}
	return stats.NumberOfDocuments, nil
}

// FacetDistribution returns value -> count for a filterable attribute.
func (d *MeilisearchDriver) FacetDistribution(ctx context.Context, field string) (map[string]int64, error) {
	resp, err := d.index.SearchWithContext(ctx, "", &meilisearch.SearchRequest{
		Limit:  0,
		Facets: []string{field},
	})
	if err != nil {
		return nil, newDriverError("FacetDistribution", err)
	}

	raw, err := json.Marshal(resp.FacetDistribution)
	if err != nil {
		return nil, &DriverError{Op: "FacetDistribution", Err: err.Error()}
	}
	var dist map[string]map[string]int64
	if err := json.Unmarshal(raw, &dist); err != nil {
		return nil, &DriverError{Op: "FacetDistribution", Err: "decode facets: " + err.Error()}
	}
	return dist[field], nil
}

func (d *MeilisearchDriver) EnsureIndex(ctx context.Context) error {
	// Check if index exists
	_, err := d.index.FetchInfo()
	if err != nil {
		// Index might not exist, create it by adding a dummy document
		dummyDoc := []map[string]interface{}{
			{"id": "init", "title": "Initialization document"},
		}

		task, err := d.index.AddDocuments(dummyDoc, nil)
		if err != nil {
			return &DriverError{Op: "EnsureIndex", Err: "failed to create index: " + err.Error(), Unavailable: true}
		}
		if err := d.waitForTask(ctx, "EnsureIndex", task.TaskUID); err != nil {
			return err
		}

		deleteTask, err := d.index.DeleteDocument("init", nil)
		if err == nil {
			_ = d.waitForTask(ctx, "EnsureIndex", deleteTask.TaskUID)
		}
	}

	steps := []struct {
		name string
		run  func() (*meilisearch.TaskInfo, error)
	}{
		{"filterable attributes", func() (*meilisearch.TaskInfo, error) {
			return d.index.UpdateFilterableAttributes(&filterableAttributes)
		}},
		{"sortable attributes", func() (*meilisearch.TaskInfo, error) {
			return d.index.UpdateSortableAttributes(&sortableAttributes)
		}},
		{"searchable attributes", func() (*meilisearch.TaskInfo, error) {
			return d.index.UpdateSearchableAttributes(&searchableAttributes)
		}},
		{"ranking rules", func() (*meilisearch.TaskInfo, error) {
			return d.index.UpdateRankingRules(&rankingRules)
		}},
	}
	for _, step := range steps {
		task, err := step.run()
		if err != nil {
			return &DriverError{Op: "EnsureIndex", Err: "failed to set " + step.name + ": " + err.Error()}
		}
		if err := d.waitForTask(ctx, "EnsureIndex", task.TaskUID); err != nil {
			return err
		}
	}

	return nil
}

func (d *MeilisearchDriver) RegisterSynonyms(ctx context.Context, synonyms map[string][]string) error {
	task, err := d.index.UpdateSynonyms(&synonyms)
	if err != nil {
		return &DriverError{
			Op:  "RegisterSynonyms",
			Err: "failed to register synonyms: " + err.Error(),
		}
	}
	return d.waitForTask(ctx, "RegisterSynonyms", task.TaskUID)
}

func (d *MeilisearchDriver) Healthy(ctx context.Context) bool {
	return d.client.IsHealthy()
}

// decodeHits re-encodes raw hits and decodes them into PostDocument values.
func decodeHits(hits any) ([]PostDocument, error) {
	raw, err := json.Marshal(hits)
	if err != nil {
		return nil, err
	}
	var docs []PostDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
