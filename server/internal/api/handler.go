package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/pkg/types"
	"github.com/claimdesk/claimdesk/server/internal/alerts"
	"github.com/claimdesk/claimdesk/server/internal/appraisal"
	"github.com/claimdesk/claimdesk/server/internal/kpi"
	"github.com/claimdesk/claimdesk/server/internal/metrics"
	"github.com/claimdesk/claimdesk/server/internal/policy"
	"github.com/claimdesk/claimdesk/server/internal/receiver"
	"github.com/claimdesk/claimdesk/server/internal/samples"
	"github.com/claimdesk/claimdesk/server/internal/store"
)

const (
	serviceName     = "claimdesk"
	maxBodyBytes    = 4 << 20
	defaultMaxBatch = 50
	defaultLimit    = 100
	defaultSearchK  = 3
	maxSearchK      = 10
)

// Config wires the handler. Receiver and Store are required.
type Config struct {
	Receiver    *receiver.Receiver
	Store       *store.Store
	Alerts      *alerts.Engine
	Inspections *appraisal.Queue
	Retriever   policy.Retriever
	Logger      *zap.Logger
	Version     string

	// MaxBatch caps the number of claims in one batch request.
	MaxBatch int
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
type Handler struct {
	cfg Config
	log *zap.Logger
	mux *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	h := &Handler{cfg: cfg, log: cfg.Logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/claims/process", h.processClaim)
	h.mux.HandleFunc("/api/v1/claims/batch", h.processBatch)
	h.mux.HandleFunc("/api/v1/claims", h.listClaims)
	h.mux.HandleFunc("/api/v1/claims/", h.claimSubtree) // {id} and {id}/override
	h.mux.HandleFunc("/api/v1/metrics", h.kpis)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/policy/search", h.searchPolicy)
	h.mux.HandleFunc("/api/v1/samples", h.listSamples)
	h.mux.HandleFunc("/api/v1/samples/", h.processSample) // {name}/process
	h.mux.HandleFunc("/api/v1/inspections", h.inspections)
	h.mux.HandleFunc("/api/v1/inspections/completed", h.completedInspections)
	h.mux.HandleFunc("/api/v1/inspections/", h.inspectionSubtree) // {id}/assign, {id}/assessment
	h.mux.HandleFunc("/api/v1/dashboard", h.dashboard)
	h.mux.HandleFunc("/metrics", h.prometheus)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp := HealthResponse{
		Status:               "healthy",
		Service:              serviceName,
		Version:              h.cfg.Version,
		AgenticModeAvailable: h.cfg.Receiver.AgenticAvailable(),
		Mode:                 h.cfg.Receiver.Mode(true),
		ClaimsProcessed:      h.cfg.Store.Count(),
	}
	if h.cfg.Alerts != nil {
		resp.AlertsFiring = h.cfg.Alerts.Firing()
	}
	jsonResp(w, http.StatusOK, resp)
}

// processClaim handles POST /api/v1/claims/process.
func (h *Handler) processClaim(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req ProcessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := types.DecodeClaim(req.ClaimData)
	if err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.runOne(w, r, c, agentic(req.UseAgenticMode))
}

// processBatch handles POST /api/v1/claims/batch. Claims run in parallel;
// a claim that fails to decode or process is reported as failed and does
// not affect the others.
func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Claims) == 0 {
		jsonErr(w, http.StatusBadRequest, "claims must not be empty")
		return
	}
	if len(req.Claims) > h.cfg.MaxBatch {
		jsonErr(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d claims exceeds the limit of %d", len(req.Claims), h.cfg.MaxBatch))
		return
	}

	claims := make([]*types.ClaimInfo, len(req.Claims))
	decodeErrs := make([]error, len(req.Claims))
	for i, raw := range req.Claims {
		claims[i], decodeErrs[i] = types.DecodeClaim(raw)
	}
	items := h.cfg.Receiver.ProcessBatch(r.Context(), claims, agentic(req.UseAgenticMode))

	resp := BatchResponse{TotalClaims: len(items), Results: make([]ClaimResponse, len(items))}
	for i, it := range items {
		err := it.Err
		if decodeErrs[i] != nil {
			err = decodeErrs[i]
		}
		if err != nil {
			resp.Failed++
			resp.Results[i] = failedResponse(it.ClaimNumber, err)
			continue
		}
		resp.Processed++
		resp.Results[i] = toClaimResponse(it.Record)
	}
	h.log.Info("batch processed",
		zap.Int("total", resp.TotalClaims),
		zap.Int("failed", resp.Failed),
	)
	jsonResp(w, http.StatusOK, resp)
}

// listClaims handles GET /api/v1/claims?priority=&covered=&sort=&limit=&offset=.
func (h *Handler) listClaims(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	page, total := h.cfg.Store.List(q)
	resp := ListResponse{
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
		Claims: make([]ClaimResponse, 0, len(page)),
	}
	for _, rec := range page {
		resp.Claims = append(resp.Claims, toClaimResponse(rec))
	}
	jsonResp(w, http.StatusOK, resp)
}

// claimSubtree handles GET /api/v1/claims/{id} and
// POST /api/v1/claims/{id}/override.
func (h *Handler) claimSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/claims/"), "/")
	if rest == "" {
		h.listClaims(w, r)
		return
	}
	id, action, _ := strings.Cut(rest, "/")
	switch action {
	case "":
		h.getClaim(w, r, id)
	case "override":
		h.overrideClaim(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) getClaim(w http.ResponseWriter, r *http.Request, id string) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	rec, ok := h.cfg.Store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("claim %s not found", id))
		return
	}
	jsonResp(w, http.StatusOK, toClaimResponse(rec))
}

func (h *Handler) overrideClaim(w http.ResponseWriter, r *http.Request, id string) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req store.OverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.cfg.Receiver.Override(id, req)
	switch {
	case errors.Is(err, types.ErrClaimNotFound):
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("claim %s not found", id))
		return
	case errors.Is(err, store.ErrReasonRequired), errors.Is(err, store.ErrInvalidAction):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, toClaimResponse(rec))
}

// kpis returns GET /api/v1/metrics.
func (h *Handler) kpis(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	jsonResp(w, http.StatusOK, kpi.Compute(h.cfg.Store.All()))
}

// alerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.cfg.Alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.cfg.Alerts.Active())
}

// searchPolicy handles GET /api/v1/policy/search?q=&k=.
func (h *Handler) searchPolicy(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.cfg.Retriever == nil {
		jsonErr(w, http.StatusServiceUnavailable, "policy retrieval is not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonErr(w, http.StatusBadRequest, "q is required")
		return
	}
	k, err := intParam(r, "k", defaultSearchK)
	if err != nil || k < 1 || k > maxSearchK {
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("k must be between 1 and %d", maxSearchK))
		return
	}
	chunks, err := h.cfg.Retriever.Retrieve(r.Context(), q, k)
	if err != nil {
		h.log.Warn("policy search failed", zap.String("query", q), zap.Error(err))
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	if chunks == nil {
		chunks = []policy.Chunk{}
	}
	jsonResp(w, http.StatusOK, SearchResponse{Query: q, Results: chunks})
}

// listSamples returns GET /api/v1/samples.
func (h *Handler) listSamples(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	all, err := samples.All()
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]SampleResponse, 0, len(all))
	for _, s := range all {
		out = append(out, SampleResponse{
			Name:                s.Name,
			ClaimNumber:         s.Claim.ClaimNumber,
			ClaimantName:        s.Claim.ClaimantName,
			LossDescription:     s.Claim.LossDescription,
			EstimatedRepairCost: s.Claim.EstimatedRepairCost,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// processSample handles POST /api/v1/samples/{name}/process?agentic=.
func (h *Handler) processSample(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/samples/"), "/")
	name, action, _ := strings.Cut(rest, "/")
	if name == "" {
		h.listSamples(w, r)
		return
	}
	if action != "process" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if !allow(w, r, http.MethodPost) {
		return
	}
	c, err := samples.Load(name)
	if errors.Is(err, samples.ErrUnknownSample) {
		jsonErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	useAgentic := true
	if v := r.URL.Query().Get("agentic"); v != "" {
		if useAgentic, err = strconv.ParseBool(v); err != nil {
			jsonErr(w, http.StatusBadRequest, "agentic must be a boolean")
			return
		}
	}
	h.runOne(w, r, c, useAgentic)
}

// inspections handles GET (pending queue) and POST (queue a stored claim)
// on /api/v1/inspections.
func (h *Handler) inspections(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) || !h.inspectionsEnabled(w) {
		return
	}
	if r.Method == http.MethodGet {
		jsonResp(w, http.StatusOK, h.cfg.Inspections.Pending())
		return
	}

	var req EnqueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, ok := h.cfg.Store.Get(req.ClaimNumber)
	if !ok {
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("claim %s not found", req.ClaimNumber))
		return
	}
	in, created := h.cfg.Inspections.Enqueue(rec.Claim, rec.Result)
	switch {
	case created:
		jsonResp(w, http.StatusCreated, in)
	case in.ID != "":
		jsonResp(w, http.StatusOK, in)
	default:
		jsonErr(w, http.StatusConflict, fmt.Sprintf("claim %s was already inspected", req.ClaimNumber))
	}
}

// completedInspections returns GET /api/v1/inspections/completed.
func (h *Handler) completedInspections(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) || !h.inspectionsEnabled(w) {
		return
	}
	jsonResp(w, http.StatusOK, CompletedResponse{
		Summary: h.cfg.Inspections.Summary(),
		Reports: h.cfg.Inspections.Completed(),
	})
}

// inspectionSubtree handles POST /api/v1/inspections/{id}/assign and
// POST /api/v1/inspections/{id}/assessment.
func (h *Handler) inspectionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/inspections/"), "/")
	if rest == "" {
		h.inspections(w, r)
		return
	}
	id, action, _ := strings.Cut(rest, "/")
	if action != "assign" && action != "assessment" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if !allow(w, r, http.MethodPost) || !h.inspectionsEnabled(w) {
		return
	}

	var (
		out any
		err error
	)
	if action == "assign" {
		var req AssignRequest
		if !decodeBody(w, r, &req) {
			return
		}
		date, perr := parseDate(req.Date)
		if perr != nil {
			jsonErr(w, http.StatusBadRequest, perr.Error())
			return
		}
		out, err = h.cfg.Inspections.Assign(id, req.Appraiser, date)
	} else {
		var req appraisal.AssessmentInput
		if !decodeBody(w, r, &req) {
			return
		}
		out, err = h.cfg.Inspections.Submit(id, req)
	}
	switch {
	case errors.Is(err, appraisal.ErrNotFound):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, appraisal.ErrInvalidAssessment):
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	default:
		jsonResp(w, http.StatusOK, out)
	}
}

// dashboard returns GET /api/v1/dashboard.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	jsonResp(w, http.StatusOK, BuildDashboard(h.sources()))
}

// prometheus returns GET /metrics in the text exposition format.
func (h *Handler) prometheus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	g := metrics.Gauges{AgenticAvailable: h.cfg.Receiver.AgenticAvailable()}
	if h.cfg.Alerts != nil {
		g.AlertsFiring = h.cfg.Alerts.Firing()
	}
	if h.cfg.Inspections != nil {
		g.InspectionsPending = h.cfg.Inspections.Summary().Pending
	}
	w.Header().Set("Content-Type", metrics.ContentType())
	if err := metrics.Write(w, metrics.Families(kpi.Compute(h.cfg.Store.All()), g)); err != nil {
		h.log.Warn("write metrics", zap.Error(err))
	}
}

// --- helpers ----------------------------------------------------------------

// runOne processes c and writes the stored record or an error.
func (h *Handler) runOne(w http.ResponseWriter, r *http.Request, c *types.ClaimInfo, useAgentic bool) {
	rec, err := h.cfg.Receiver.Process(r.Context(), c, useAgentic)
	switch {
	case errors.Is(err, types.ErrInvalidClaim):
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		h.log.Error("process claim", zap.String("claim", c.ClaimNumber), zap.Error(err))
		jsonErr(w, http.StatusInternalServerError, fmt.Sprintf("error processing claim: %v", err))
	default:
		jsonResp(w, http.StatusOK, toClaimResponse(rec))
	}
}

func (h *Handler) sources() Sources {
	return Sources{Store: h.cfg.Store, Alerts: h.cfg.Alerts, Inspections: h.cfg.Inspections}
}

func (h *Handler) inspectionsEnabled(w http.ResponseWriter) bool {
	if h.cfg.Inspections == nil {
		jsonErr(w, http.StatusServiceUnavailable, "inspection queue is not configured")
		return false
	}
	return true
}

// allow writes 405 and returns false unless r uses one of methods.
func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// decodeBody decodes the JSON request body into v, writing 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func parseQuery(r *http.Request) (store.Query, error) {
	v := r.URL.Query()
	q := store.Query{Sort: v.Get("sort")}
	if q.Sort == "" {
		q.Sort = store.SortNewest
	}
	if !store.ValidSort(q.Sort) {
		return q, fmt.Errorf("unknown sort %q", q.Sort)
	}
	for _, p := range v["priority"] {
		for _, s := range strings.Split(p, ",") {
			if s = strings.TrimSpace(s); s != "" {
				q.Priorities = append(q.Priorities, s)
			}
		}
	}
	if c := v.Get("covered"); c != "" {
		b, err := strconv.ParseBool(c)
		if err != nil {
			return q, fmt.Errorf("covered must be a boolean")
		}
		q.Covered = &b
	}
	var err error
	if q.Limit, err = intParam(r, "limit", defaultLimit); err != nil || q.Limit < 1 {
		return q, fmt.Errorf("limit must be a positive integer")
	}
	if q.Offset, err = intParam(r, "offset", 0); err != nil || q.Offset < 0 {
		return q, fmt.Errorf("offset must be a non-negative integer")
	}
	return q, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}

// agentic resolves the optional use_agentic_mode flag, which defaults to true.
func agentic(flag *bool) bool {
	return flag == nil || *flag
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
