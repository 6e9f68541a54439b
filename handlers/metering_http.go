package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"meterbackend/appctx"
	"meterbackend/core"
	"meterbackend/middleware"
	"meterbackend/models"
	"meterbackend/models/api"
)

type MeteringHTTPHandler struct {
	handler *MeteringAPIHandler
}

func NewMeteringHTTPHandler(handler *MeteringAPIHandler) *MeteringHTTPHandler {
	return &MeteringHTTPHandler{
		handler: handler,
	}
}

type RecordUsageRequest struct {
	ProjectID        string     `json:"project_id"`
	Provider         string     `json:"provider"`
	Model            string     `json:"model"`
	InputTokens      int        `json:"input_tokens"`
	OutputTokens     int        `json:"output_tokens"`
	RequestTimestamp *time.Time `json:"request_timestamp,omitempty"`
}

type ConfigureBudgetRequest struct {
	BudgetThresholdUSD          *decimal.Decimal `json:"budget_threshold_usd"`
	BudgetAlertThresholdPercent *int             `json:"budget_alert_threshold_percent,omitempty"`
	AlertEmail                  *string          `json:"alert_email,omitempty"`
}

type BudgetCheckRequest struct {
	DryRun bool `json:"dry_run"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (h *MeteringHTTPHandler) HandleRecordUsage(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Record usage request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req RecordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.handler.RecordUsage(r.Context(), user, models.RecordUsageParams{
		ProjectID:        req.ProjectID,
		Provider:         req.Provider,
		Model:            req.Model,
		InputTokens:      req.InputTokens,
		OutputTokens:     req.OutputTokens,
		RequestTimestamp: req.RequestTimestamp,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to record usage")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, api.DomainUsageEventToAPIUsageEvent(event))
}

func (h *MeteringHTTPHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Get usage request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	filter, err := parseUsageFilter(r)
	if err != nil {
		h.writeDomainError(w, err, "invalid usage filter")
		return
	}

	// raw=true returns individual events instead of grouped totals
	if r.URL.Query().Get("raw") == "true" {
		events, err := h.handler.ListUsage(r.Context(), user, filter)
		if err != nil {
			h.writeDomainError(w, err, "failed to list usage")
			return
		}

		apiEvents := make([]*api.UsageEventModel, 0, len(events))
		for _, event := range events {
			apiEvents = append(apiEvents, api.DomainUsageEventToAPIUsageEvent(event))
		}
		h.writeJSONResponse(w, http.StatusOK, map[string]any{
			"usage": apiEvents,
			"count": len(apiEvents),
		})
		return
	}

	groupBy := models.GroupBy(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = models.GroupByDay
	}

	aggregates, err := h.handler.AggregateUsage(r.Context(), user, filter, groupBy)
	if err != nil {
		h.writeDomainError(w, err, "failed to aggregate usage")
		return
	}

	apiGroups := make([]*api.UsageAggregateModel, 0, len(aggregates))
	for _, aggregate := range aggregates {
		apiGroups = append(apiGroups, api.DomainUsageAggregateToAPIUsageAggregate(aggregate))
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"groups": apiGroups,
		"count":  len(apiGroups),
	})
}

func (h *MeteringHTTPHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 List projects request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	projects, err := h.handler.ListProjects(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, err, "failed to list projects")
		return
	}

	apiProjects := make([]*api.ProjectModel, 0, len(projects))
	for _, project := range projects {
		apiProjects = append(apiProjects, api.DomainProjectToAPIProject(project))
	}
	h.writeJSONResponse(w, http.StatusOK, apiProjects)
}

func (h *MeteringHTTPHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	log.Printf("➕ Create project request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	project, err := h.handler.CreateProject(r.Context(), user, req.Name)
	if err != nil {
		h.writeDomainError(w, err, "failed to create project")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, api.DomainProjectToAPIProject(project))
}

func (h *MeteringHTTPHandler) HandleGetBudget(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Get budget request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	projectID := mux.Vars(r)["projectID"]
	maybeBudget, status, err := h.handler.GetBudget(r.Context(), user, projectID)
	if err != nil {
		h.writeDomainError(w, err, "failed to get budget")
		return
	}

	var apiBudget *api.ProjectBudgetModel
	if budget, ok := maybeBudget.Get(); ok {
		apiBudget = api.DomainProjectBudgetToAPIProjectBudget(budget)
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"budget": apiBudget,
		"status": api.DomainBudgetStatusToAPIBudgetStatus(status),
	})
}

func (h *MeteringHTTPHandler) HandleConfigureBudget(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Configure budget request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req ConfigureBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	params := models.ConfigureBudgetParams{
		ProjectID:                   mux.Vars(r)["projectID"],
		BudgetAlertThresholdPercent: req.BudgetAlertThresholdPercent,
		AlertEmail:                  req.AlertEmail,
	}
	if req.BudgetThresholdUSD != nil {
		params.BudgetThresholdUSD = decimal.NewNullDecimal(*req.BudgetThresholdUSD)
	}

	budget, err := h.handler.ConfigureBudget(r.Context(), user, params)
	if err != nil {
		h.writeDomainError(w, err, "failed to configure budget")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainProjectBudgetToAPIProjectBudget(budget))
}

func (h *MeteringHTTPHandler) HandleCheckBudget(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Budget check request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		log.Printf("❌ User not found in context")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	req, err := parseBudgetCheckRequest(r)
	if err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.handler.CheckProjectBudget(r.Context(), user, mux.Vars(r)["projectID"], req.DryRun)
	if err != nil {
		h.writeDomainError(w, err, "failed to check budget")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, api.DomainAlertResultToAPIAlertResult(result))
}

func (h *MeteringHTTPHandler) HandleCheckAllBudgets(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Batch budget check request received from %s", r.RemoteAddr)

	req, err := parseBudgetCheckRequest(r)
	if err != nil {
		log.Printf("❌ Failed to parse request body: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcomes, err := h.handler.CheckAllBudgets(r.Context(), req.DryRun)
	if err != nil {
		h.writeDomainError(w, err, "failed to run batch budget check")
		return
	}

	apiOutcomes := make([]*api.ProjectAlertOutcomeModel, 0, len(outcomes))
	for _, outcome := range outcomes {
		apiOutcomes = append(apiOutcomes, api.DomainAlertOutcomeToAPIAlertOutcome(outcome))
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"results": apiOutcomes,
		"count":   len(apiOutcomes),
	})
}

func (h *MeteringHTTPHandler) SetupEndpoints(router *mux.Router, authMiddleware *middleware.ClerkAuthMiddleware) {
	log.Printf("🚀 Registering metering API endpoints")

	router.HandleFunc("/usage", authMiddleware.WithAuth(h.HandleRecordUsage)).Methods("POST")
	log.Printf("✅ POST /usage endpoint registered")

	router.HandleFunc("/usage", authMiddleware.WithAuth(h.HandleGetUsage)).Methods("GET")
	log.Printf("✅ GET /usage endpoint registered")

	router.HandleFunc("/projects", authMiddleware.WithAuth(h.HandleListProjects)).Methods("GET")
	log.Printf("✅ GET /projects endpoint registered")

	router.HandleFunc("/projects", authMiddleware.WithAuth(h.HandleCreateProject)).Methods("POST")
	log.Printf("✅ POST /projects endpoint registered")

	router.HandleFunc("/projects/{projectID}/budget", authMiddleware.WithAuth(h.HandleGetBudget)).Methods("GET")
	log.Printf("✅ GET /projects/{projectID}/budget endpoint registered")

	router.HandleFunc("/projects/{projectID}/budget", authMiddleware.WithAuth(h.HandleConfigureBudget)).Methods("PUT")
	log.Printf("✅ PUT /projects/{projectID}/budget endpoint registered")

	router.HandleFunc("/projects/{projectID}/budget/check", authMiddleware.WithAuth(h.HandleCheckBudget)).
		Methods("POST")
	log.Printf("✅ POST /projects/{projectID}/budget/check endpoint registered")

	router.HandleFunc("/budget/check-all", authMiddleware.WithAuth(h.HandleCheckAllBudgets)).Methods("POST")
	log.Printf("✅ POST /budget/check-all endpoint registered")

	log.Printf("✅ All metering API endpoints registered successfully")
}

// parseUsageFilter reads the shared query parameters for usage endpoints.
// Dates accept RFC3339 or plain YYYY-MM-DD; date_from is inclusive,
// date_to exclusive.
func parseUsageFilter(r *http.Request) (models.UsageFilter, error) {
	query := r.URL.Query()
	filter := models.UsageFilter{
		ProjectID: query.Get("project_id"),
		Provider:  query.Get("provider"),
		Model:     query.Get("model"),
	}

	if raw := query.Get("date_from"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			return models.UsageFilter{}, core.NewValidationError("date_from", "must be RFC3339 or YYYY-MM-DD")
		}
		filter.DateFrom = &parsed
	}
	if raw := query.Get("date_to"); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			return models.UsageFilter{}, core.NewValidationError("date_to", "must be RFC3339 or YYYY-MM-DD")
		}
		filter.DateTo = &parsed
	}

	return filter, nil
}

func parseDateParam(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}

// parseBudgetCheckRequest tolerates an empty body; dry_run defaults to false
func parseBudgetCheckRequest(r *http.Request) (BudgetCheckRequest, error) {
	var req BudgetCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return BudgetCheckRequest{}, err
	}
	return req, nil
}

// writeDomainError maps the error taxonomy onto HTTP statuses: validation
// and pricing failures are 422 with a machine-readable code, authorization
// failures are 404 so callers cannot probe for project existence.
func (h *MeteringHTTPHandler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case core.IsAuthorizationError(err):
		log.Printf("❌ Project access denied: %v", err)
		h.writeErrorResponse(w, http.StatusNotFound, "not_found", "project not found or access denied")
	case core.IsPricingNotFoundError(err):
		log.Printf("❌ Pricing lookup failed: %v", err)
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, "pricing_not_found", err.Error())
	case core.IsValidationError(err):
		log.Printf("❌ Validation failed: %v", err)
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case core.IsNotFoundError(err):
		log.Printf("❌ Resource not found: %v", err)
		h.writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	default:
		log.Printf("❌ %s: %v", fallback, err)
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func (h *MeteringHTTPHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Code: code, Error: message}); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}

func (h *MeteringHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
