package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meterbackend/appctx"
	"meterbackend/core"
	"meterbackend/models"
	"meterbackend/services/budget"
	"meterbackend/services/projects"
	"meterbackend/services/usage"
)

// Test data
var (
	testOrgID = models.OrgID("org_01234567890123456789012345")

	testUser = &models.User{
		ID:             "u_01234567890123456789012345",
		AuthProvider:   "clerk",
		AuthProviderID: "user_test_123",
		OrgID:          testOrgID,
	}

	testProject = &models.Project{
		ID:    "p_01234567890123456789012345",
		OrgID: testOrgID,
		Name:  "Checkout API",
	}

	foreignProject = &models.Project{
		ID:    "p_98765432109876543210987654",
		OrgID: models.OrgID("org_99999999999999999999999999"),
		Name:  "Someone Else's Project",
	}
)

type handlerFixture struct {
	apiHandler  *MeteringAPIHandler
	httpHandler *MeteringHTTPHandler
	usage       *usage.MockUsageService
	budget      *budget.MockBudgetService
	projects    *projects.MockProjectsService
}

func newHandlerFixture() *handlerFixture {
	usageService := &usage.MockUsageService{}
	budgetService := &budget.MockBudgetService{}
	projectsService := &projects.MockProjectsService{}

	apiHandler := NewMeteringAPIHandler(usageService, budgetService, projectsService)
	return &handlerFixture{
		apiHandler:  apiHandler,
		httpHandler: NewMeteringHTTPHandler(apiHandler),
		usage:       usageService,
		budget:      budgetService,
		projects:    projectsService,
	}
}

func (f *handlerFixture) grantAccess(project *models.Project) {
	f.projects.On("GetProjectByID", mock.Anything, project.ID).Return(mo.Some(project), nil)
	f.projects.On("CanAccessProject", testUser, project).Return(project.OrgID == testUser.OrgID)
}

// authedRequest builds a request carrying the test user, the way the auth
// middleware would
func authedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(appctx.SetUser(req.Context(), testUser))
}

func TestMeteringAPIHandler_RecordUsage_AccessControl(t *testing.T) {
	tests := []struct {
		name      string
		projectID string
		setup     func(*handlerFixture)
	}{
		{
			name:      "unknown project is denied",
			projectID: "p_00000000000000000000000000",
			setup: func(f *handlerFixture) {
				f.projects.On("GetProjectByID", mock.Anything, "p_00000000000000000000000000").
					Return(mo.None[*models.Project](), nil)
			},
		},
		{
			name:      "foreign project is denied",
			projectID: foreignProject.ID,
			setup: func(f *handlerFixture) {
				f.grantAccess(foreignProject)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			tt.setup(f)

			_, err := f.apiHandler.RecordUsage(context.Background(), testUser, models.RecordUsageParams{
				ProjectID:    tt.projectID,
				Provider:     "openai",
				Model:        "gpt-4",
				InputTokens:  100,
				OutputTokens: 50,
			})

			require.Error(t, err)
			assert.True(t, core.IsAuthorizationError(err))
			f.usage.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		})
	}
}

func TestMeteringAPIHandler_RecordUsage_Success(t *testing.T) {
	f := newHandlerFixture()
	f.grantAccess(testProject)

	expectedEvent := &models.UsageEvent{
		ID:        "ue_01234567890123456789012345",
		ProjectID: testProject.ID,
		Provider:  "openai",
		Model:     "gpt-4",
		CostUSD:   decimal.RequireFromString("0.075"),
	}
	f.usage.On("Record", mock.Anything, mock.MatchedBy(func(params models.RecordUsageParams) bool {
		return params.ProjectID == testProject.ID && params.InputTokens == 1500
	})).Return(expectedEvent, nil)

	event, err := f.apiHandler.RecordUsage(context.Background(), testUser, models.RecordUsageParams{
		ProjectID:    testProject.ID,
		Provider:     "openai",
		Model:        "gpt-4",
		InputTokens:  1500,
		OutputTokens: 500,
	})

	require.NoError(t, err)
	assert.Equal(t, expectedEvent, event)
	f.usage.AssertExpectations(t)
}

func TestHandleRecordUsage_StatusCodes(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*handlerFixture)
		body         any
		expectedCode int
		expectedAPI  string
	}{
		{
			name: "created on success",
			setup: func(f *handlerFixture) {
				f.grantAccess(testProject)
				f.usage.On("Record", mock.Anything, mock.Anything).Return(&models.UsageEvent{
					ID:        "ue_01234567890123456789012345",
					ProjectID: testProject.ID,
				}, nil)
			},
			body: RecordUsageRequest{
				ProjectID: testProject.ID, Provider: "openai", Model: "gpt-4",
				InputTokens: 1500, OutputTokens: 500,
			},
			expectedCode: http.StatusCreated,
		},
		{
			name: "validation failure maps to 422",
			setup: func(f *handlerFixture) {
				f.grantAccess(testProject)
				f.usage.On("Record", mock.Anything, mock.Anything).
					Return(nil, core.NewValidationError("input_tokens", "cannot be negative"))
			},
			body: RecordUsageRequest{
				ProjectID: testProject.ID, Provider: "openai", Model: "gpt-4",
				InputTokens: -1,
			},
			expectedCode: http.StatusUnprocessableEntity,
			expectedAPI:  "validation_failed",
		},
		{
			name: "unknown pricing maps to 422",
			setup: func(f *handlerFixture) {
				f.grantAccess(testProject)
				f.usage.On("Record", mock.Anything, mock.Anything).
					Return(nil, &core.PricingNotFoundError{Provider: "openai", Model: "gpt-9"})
			},
			body: RecordUsageRequest{
				ProjectID: testProject.ID, Provider: "openai", Model: "gpt-9",
				InputTokens: 100,
			},
			expectedCode: http.StatusUnprocessableEntity,
			expectedAPI:  "pricing_not_found",
		},
		{
			name: "denied project maps to 404",
			setup: func(f *handlerFixture) {
				f.grantAccess(foreignProject)
			},
			body: RecordUsageRequest{
				ProjectID: foreignProject.ID, Provider: "openai", Model: "gpt-4",
				InputTokens: 100,
			},
			expectedCode: http.StatusNotFound,
			expectedAPI:  "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			tt.setup(f)

			req := authedRequest(t, http.MethodPost, "/api/usage", tt.body)
			rec := httptest.NewRecorder()
			f.httpHandler.HandleRecordUsage(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedAPI != "" {
				var errResp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
				assert.Equal(t, tt.expectedAPI, errResp.Code)
			}
		})
	}
}

func TestHandleRecordUsage_RequiresAuthentication(t *testing.T) {
	f := newHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/usage", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	f.httpHandler.HandleRecordUsage(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGetUsage_GroupedAndRaw(t *testing.T) {
	t.Run("grouped response", func(t *testing.T) {
		f := newHandlerFixture()
		f.grantAccess(testProject)
		f.usage.On("Aggregate", mock.Anything, mock.MatchedBy(func(filter models.UsageFilter) bool {
			return filter.ProjectID == testProject.ID && filter.Provider == "openai"
		}), models.GroupByModel).Return([]*models.UsageAggregate{
			{GroupKey: "gpt-4", TotalCostUSD: decimal.RequireFromString("1.50"), TotalTokens: 5000, RequestCount: 3},
		}, nil)

		req := authedRequest(t, http.MethodGet,
			"/api/usage?project_id="+testProject.ID+"&provider=openai&group_by=model", nil)
		rec := httptest.NewRecorder()
		f.httpHandler.HandleGetUsage(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Groups []map[string]any `json:"groups"`
			Count  int              `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "gpt-4", resp.Groups[0]["group_key"])
	})

	t.Run("group_by defaults to day", func(t *testing.T) {
		f := newHandlerFixture()
		f.grantAccess(testProject)
		f.usage.On("Aggregate", mock.Anything, mock.Anything, models.GroupByDay).
			Return([]*models.UsageAggregate{}, nil)

		req := authedRequest(t, http.MethodGet, "/api/usage?project_id="+testProject.ID, nil)
		rec := httptest.NewRecorder()
		f.httpHandler.HandleGetUsage(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		f.usage.AssertExpectations(t)
	})

	t.Run("raw listing", func(t *testing.T) {
		f := newHandlerFixture()
		f.grantAccess(testProject)
		f.usage.On("ListEvents", mock.Anything, mock.Anything).Return([]*models.UsageEvent{
			{ID: "ue_01234567890123456789012345", ProjectID: testProject.ID},
		}, nil)

		req := authedRequest(t, http.MethodGet, "/api/usage?project_id="+testProject.ID+"&raw=true", nil)
		rec := httptest.NewRecorder()
		f.httpHandler.HandleGetUsage(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Usage []map[string]any `json:"usage"`
			Count int              `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		f.usage.AssertNotCalled(t, "Aggregate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad date parameter", func(t *testing.T) {
		f := newHandlerFixture()

		req := authedRequest(t, http.MethodGet,
			"/api/usage?project_id="+testProject.ID+"&date_from=yesterday", nil)
		rec := httptest.NewRecorder()
		f.httpHandler.HandleGetUsage(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestHandleConfigureBudget_RoundTrip(t *testing.T) {
	f := newHandlerFixture()
	f.grantAccess(testProject)

	threshold := decimal.NewFromInt(100)
	percent := 90
	f.budget.On("ConfigureBudget", mock.Anything, mock.MatchedBy(func(params models.ConfigureBudgetParams) bool {
		return params.ProjectID == testProject.ID &&
			params.BudgetThresholdUSD.Valid &&
			params.BudgetThresholdUSD.Decimal.Equal(threshold) &&
			params.BudgetAlertThresholdPercent != nil &&
			*params.BudgetAlertThresholdPercent == percent
	})).Return(&models.ProjectBudget{
		ProjectID:                   testProject.ID,
		BudgetThresholdUSD:          decimal.NewNullDecimal(threshold),
		BudgetAlertThresholdPercent: percent,
	}, nil)

	req := authedRequest(t, http.MethodPut, "/api/projects/"+testProject.ID+"/budget", ConfigureBudgetRequest{
		BudgetThresholdUSD:          &threshold,
		BudgetAlertThresholdPercent: &percent,
	})
	req = mux.SetURLVars(req, map[string]string{"projectID": testProject.ID})
	rec := httptest.NewRecorder()
	f.httpHandler.HandleConfigureBudget(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "100", resp["budget_threshold_usd"])
	f.budget.AssertExpectations(t)
}

func TestHandleGetBudget_IncludesLiveStatus(t *testing.T) {
	f := newHandlerFixture()
	f.grantAccess(testProject)

	f.budget.On("GetBudget", mock.Anything, testProject.ID).Return(mo.Some(&models.ProjectBudget{
		ProjectID:                   testProject.ID,
		BudgetThresholdUSD:          decimal.NewNullDecimal(decimal.NewFromInt(100)),
		BudgetAlertThresholdPercent: 80,
	}), nil)
	f.budget.On("CheckBudget", mock.Anything, testProject.ID).Return(&models.BudgetStatus{
		ProjectID:      testProject.ID,
		State:          models.BudgetStateUnderThreshold,
		CurrentCostUSD: decimal.RequireFromString("42.50"),
		ThresholdUSD:   decimal.NewFromInt(100),
		PercentUsed:    decimal.RequireFromString("42.5"),
	}, nil)

	req := authedRequest(t, http.MethodGet, "/api/projects/"+testProject.ID+"/budget", nil)
	req = mux.SetURLVars(req, map[string]string{"projectID": testProject.ID})
	rec := httptest.NewRecorder()
	f.httpHandler.HandleGetBudget(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Budget map[string]any `json:"budget"`
		Status map[string]any `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "100", resp.Budget["budget_threshold_usd"])
	assert.Equal(t, "under_threshold", resp.Status["state"])
	assert.Equal(t, "42.5", resp.Status["percent_used"])
}

func TestHandleCheckBudget_DryRunFlag(t *testing.T) {
	f := newHandlerFixture()
	f.grantAccess(testProject)

	f.budget.On("CheckAndAlert", mock.Anything, testProject.ID, true).Return(&models.AlertResult{
		BudgetStatus: models.BudgetStatus{
			ProjectID:   testProject.ID,
			State:       models.BudgetStateOverThreshold,
			ShouldAlert: true,
		},
	}, nil)

	req := authedRequest(t, http.MethodPost, "/api/projects/"+testProject.ID+"/budget/check",
		BudgetCheckRequest{DryRun: true})
	req = mux.SetURLVars(req, map[string]string{"projectID": testProject.ID})
	rec := httptest.NewRecorder()
	f.httpHandler.HandleCheckBudget(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["should_alert"])
	assert.Equal(t, false, resp["alert_sent"])
	f.budget.AssertExpectations(t)
}

func TestHandleCheckBudget_EmptyBodyDefaultsToRealRun(t *testing.T) {
	f := newHandlerFixture()
	f.grantAccess(testProject)

	f.budget.On("CheckAndAlert", mock.Anything, testProject.ID, false).Return(&models.AlertResult{
		BudgetStatus: models.BudgetStatus{ProjectID: testProject.ID, State: models.BudgetStateNoBudget},
	}, nil)

	req := authedRequest(t, http.MethodPost, "/api/projects/"+testProject.ID+"/budget/check", nil)
	req = mux.SetURLVars(req, map[string]string{"projectID": testProject.ID})
	rec := httptest.NewRecorder()
	f.httpHandler.HandleCheckBudget(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	f.budget.AssertExpectations(t)
}

func TestHandleCheckAllBudgets_ReportsPerProjectOutcomes(t *testing.T) {
	f := newHandlerFixture()

	f.budget.On("CheckAllBudgets", mock.Anything, false).Return([]*models.ProjectAlertOutcome{
		{
			ProjectID: testProject.ID,
			Result: &models.AlertResult{
				BudgetStatus: models.BudgetStatus{ProjectID: testProject.ID, State: models.BudgetStateOverThreshold},
				AlertSent:    true,
			},
		},
		{
			ProjectID: foreignProject.ID,
			Err:       assert.AnError,
		},
	}, nil)

	req := authedRequest(t, http.MethodPost, "/api/budget/check-all", nil)
	rec := httptest.NewRecorder()
	f.httpHandler.HandleCheckAllBudgets(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []struct {
			ProjectID string `json:"project_id"`
			Error     string `json:"error"`
		} `json:"results"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Empty(t, resp.Results[0].Error)
	assert.NotEmpty(t, resp.Results[1].Error)
}
