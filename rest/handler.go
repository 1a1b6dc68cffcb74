package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"post-search/domain"
	"post-search/usecase"

	"github.com/labstack/echo/v4"
)

type Searcher interface {
	Execute(ctx context.Context, req domain.QueryRequest, meta domain.RequestMeta) (*domain.ResponseEnvelope, error)
}

type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}

type PopularTerms interface {
	Top(ctx context.Context, limit int) ([]domain.PopularTerm, error)
	RecordClick(ctx context.Context, query, resultID string, meta domain.RequestMeta) error
}

type Categories interface {
	List(ctx context.Context) ([]domain.FacetCount, error)
}

type Syncer interface {
	SyncIncrementalFromStore(ctx context.Context) (*domain.SyncReport, error)
	SyncFull(ctx context.Context) (*domain.SyncReport, error)
	Status(ctx context.Context) (*domain.SyncStatus, error)
}

type HealthChecker interface {
	Check(ctx context.Context) usecase.HealthStatus
}

// Handler serves the search and sync HTTP API.
type Handler struct {
	search     Searcher
	suggest    Suggester
	popular    PopularTerms
	categories Categories
	sync       Syncer
	dryRun     Syncer
	health     HealthChecker
}

// NewHandler wires the API. dryRun is the same Synchronizer configured to
// report without writing.
func NewHandler(search Searcher, suggest Suggester, popular PopularTerms, categories Categories, sync, dryRun Syncer, health HealthChecker) *Handler {
	return &Handler{
		search:     search,
		suggest:    suggest,
		popular:    popular,
		categories: categories,
		sync:       sync,
		dryRun:     dryRun,
		health:     health,
	}
}

// SearchParams are the query parameters of GET /v1/search.
type SearchParams struct {
	Query    string   `query:"query"`
	Category string   `query:"category"`
	Tags     []string `query:"tags"`
	Author   string   `query:"author"`
	Language string   `query:"language"`
	DateFrom string   `query:"date_from"`
	DateTo   string   `query:"date_to"`
	Page     int      `query:"page" validate:"min=0"`
	PageSize int      `query:"page_size" validate:"min=0"`
	Sort     string   `query:"sort" validate:"omitempty,oneof=relevance date date_asc popularity likes"`
}

// Search handles GET /v1/search.
func (h *Handler) Search(c echo.Context) error {
	var p SearchParams
	if err := c.Bind(&p); err != nil {
		return writeError(c, &domain.ValidationError{Reason: "malformed query parameters"})
	}
	if err := c.Validate(&p); err != nil {
		return writeError(c, err)
	}
	// An absent page means the first one; an explicit page=0 is rejected downstream.
	if p.Page == 0 && c.QueryParam("page") == "" {
		p.Page = 1
	}

	from, err := parseDate("date_from", p.DateFrom, false)
	if err != nil {
		return writeError(c, err)
	}
	to, err := parseDate("date_to", p.DateTo, true)
	if err != nil {
		return writeError(c, err)
	}

	req := domain.QueryRequest{
		Text: p.Query,
		Filters: domain.QueryFilters{
			Category: p.Category,
			Tags:     splitTags(p.Tags),
			Author:   p.Author,
			Language: p.Language,
			DateFrom: from,
			DateTo:   to,
		},
		Page:     p.Page,
		PageSize: p.PageSize,
		Sort:     domain.SortOrder(p.Sort),
	}

	env, err := h.search.Execute(c.Request().Context(), req, requestMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, env)
}

type SuggestParams struct {
	Query string `query:"query" validate:"required"`
	Limit int    `query:"limit" validate:"min=0"`
}

type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// Suggest handles GET /v1/search/suggest.
func (h *Handler) Suggest(c echo.Context) error {
	var p SuggestParams
	if err := c.Bind(&p); err != nil {
		return writeError(c, &domain.ValidationError{Reason: "malformed query parameters"})
	}
	if err := c.Validate(&p); err != nil {
		return writeError(c, err)
	}

	terms, err := h.suggest.Suggest(c.Request().Context(), p.Query, p.Limit)
	if err != nil {
		return writeError(c, err)
	}
	if terms == nil {
		terms = []string{}
	}
	return c.JSON(http.StatusOK, SuggestResponse{Query: p.Query, Suggestions: terms})
}

type LimitParams struct {
	Limit int `query:"limit" validate:"min=0"`
}

type PopularResponse struct {
	Terms []domain.PopularTerm `json:"terms"`
}

// Popular handles GET /v1/search/popular.
func (h *Handler) Popular(c echo.Context) error {
	var p LimitParams
	if err := c.Bind(&p); err != nil {
		return writeError(c, &domain.ValidationError{Reason: "malformed query parameters"})
	}
	if err := c.Validate(&p); err != nil {
		return writeError(c, err)
	}

	terms, err := h.popular.Top(c.Request().Context(), p.Limit)
	if err != nil {
		return writeError(c, err)
	}
	if terms == nil {
		terms = []domain.PopularTerm{}
	}
	return c.JSON(http.StatusOK, PopularResponse{Terms: terms})
}

type CategoriesResponse struct {
	Categories []domain.FacetCount `json:"categories"`
}

// Categories handles GET /v1/search/categories.
func (h *Handler) Categories(c echo.Context) error {
	cats, err := h.categories.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, CategoriesResponse{Categories: cats})
}

type ClickRequest struct {
	Query    string `json:"query" validate:"required"`
	ResultID string `json:"result_id" validate:"required"`
}

// Click handles POST /v1/search/click.
func (h *Handler) Click(c echo.Context) error {
	var req ClickRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, &domain.ValidationError{Reason: "malformed request body"})
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, err)
	}

	if err := h.popular.RecordClick(c.Request().Context(), req.Query, req.ResultID, requestMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// SyncStatus handles GET /v1/sync/status.
func (h *Handler) SyncStatus(c echo.Context) error {
	status, err := h.sync.Status(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newStatusResponse(status))
}

type SyncParams struct {
	Mode   string `query:"mode" validate:"omitempty,oneof=incremental full"`
	DryRun bool   `query:"dry_run"`
}

// TriggerSync handles POST /v1/sync. The run completes before the response is
// written; a client disconnect does not abort it.
func (h *Handler) TriggerSync(c echo.Context) error {
	p := SyncParams{Mode: c.QueryParam("mode")}
	if v := c.QueryParam("dry_run"); v != "" {
		p.DryRun = v == "true" || v == "1"
	}
	if err := c.Validate(&p); err != nil {
		return writeError(c, err)
	}

	syncer := h.sync
	if p.DryRun {
		syncer = h.dryRun
	}

	ctx := context.WithoutCancel(c.Request().Context())
	var (
		report *domain.SyncReport
		err    error
	)
	if p.Mode == string(domain.SyncModeFull) {
		report, err = syncer.SyncFull(ctx)
	} else {
		report, err = syncer.SyncIncrementalFromStore(ctx)
	}
	if report == nil && err != nil {
		return writeError(c, err)
	}

	status := http.StatusOK
	if err != nil {
		status, _ = mapDomainError(err)
	}
	return c.JSON(status, newReportResponse(report, err))
}

type HealthResponse struct {
	Status string `json:"status"`
	Index  bool   `json:"index"`
	Source bool   `json:"source"`
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	st := h.health.Check(c.Request().Context())
	resp := HealthResponse{Status: "ok", Index: st.Index, Source: st.Source}
	if !st.OK() {
		resp.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// parseDate accepts RFC 3339 or a plain date. A plain upper bound covers the
// whole day.
func parseDate(field, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, &domain.ValidationError{Field: field, Reason: "must be YYYY-MM-DD or RFC 3339"}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// splitTags accepts both repeated tags parameters and a comma-separated list.
func splitTags(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func requestMeta(c echo.Context) domain.RequestMeta {
	return domain.RequestMeta{
		UserID:    c.Request().Header.Get("X-User-ID"),
		ClientIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
