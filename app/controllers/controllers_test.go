package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/controllers"
	"github.com/dea-registry/app/models"
	"github.com/dea-registry/app/responses"
	"github.com/dea-registry/app/services"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/gazetteer/gazetteertest"
	"github.com/dea-registry/internal/matcher"
	"github.com/dea-registry/internal/records"
	"github.com/dea-registry/routes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T, recs ...models.DeaRecord) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	cfg := config.Default()
	repo := gazetteertest.NewMemory()
	store := gazetteer.NewStore(repo, cfg.Matching, logger)
	cache, err := services.NewMemoryCacheService(128, 0, logger)
	require.NoError(t, err)

	validation := services.NewAddressValidationService(matcher.NewAddressMatcher(store, cfg.Matching, logger), cache, "test", false, logger)
	recordStore := records.NewMemoryStore(recs...)
	steps := services.NewStepValidationService(recordStore, validation, cfg.Matching.StepCoordinateSkipMeters, logger)
	preprocess := services.NewPreprocessingService(recordStore, validation, cfg.Batch, logger)
	admin := services.NewAdminService(repo, nil, validation, recordStore, logger)

	router := gin.New()
	routes.SetupAllRoutes(router, routes.Controllers{
		Address: controllers.NewAddressController(validation, logger),
		Steps:   controllers.NewStepController(steps, logger),
		Admin:   controllers.NewAdminController(admin, preprocess, logger),
	}, logger)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAddressController_Validate(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/addresses/validate", map[string]string{
		"street_type":   "Calle",
		"street_name":   "Gran Via",
		"street_number": "1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp responses.ValidateAddressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test", resp.GazetteerVersion)
	assert.True(t, resp.Validation.SearchResult.IsValid)
	assert.Equal(t, models.MatchTypeExact, resp.Validation.SearchResult.MatchType)

	w = doJSON(t, router, http.MethodPost, "/v1/addresses/validate", map[string]string{"street_type": "Calle"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddressController_ParseValidate(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/addresses/parse-validate", map[string]string{
		"address": "Pº de la Chopera nº 2, 28045 Madrid",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp responses.ParseValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "regex", resp.Parsed.Source)
	assert.Equal(t, "2", resp.Parsed.StreetNumber)
	require.NotEmpty(t, resp.Validation.SearchResult.Suggestions)
	assert.Equal(t, "chopera-2", resp.Validation.SearchResult.Suggestions[0].Record.ID)
}

func TestStepController_Workflow(t *testing.T) {
	router := setupRouter(t, models.DeaRecord{
		ID: "dea-1", StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "10",
	})

	w := doJSON(t, router, http.MethodGet, "/v1/records/dea-1/steps", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/records/missing/steps", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "RECORD_NOT_FOUND", errResp.Error)

	w = doJSON(t, router, http.MethodPost, "/v1/records/dea-1/steps", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/v1/records/dea-1/steps/3", map[string]string{"district": "1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "STEP_OUT_OF_ORDER", errResp.Error)

	w = doJSON(t, router, http.MethodPost, "/v1/records/dea-1/steps/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/records/dea-1/steps/1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var step responses.StepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &step))
	assert.Equal(t, models.StepPostalCode, step.NextStep)

	w = doJSON(t, router, http.MethodPost, "/v1/records/dea-1/steps/2", map[string]string{"postal_code": "2801"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "INVALID_PAYLOAD", errResp.Error)

	w = doJSON(t, router, http.MethodDelete, "/v1/records/dea-1/steps", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminController_SeedAndPreprocess(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/admin/gazetteer/seed?dry_run=true", map[string]interface{}{
		"gazetteer_version": "v2",
		"data": []map[string]interface{}{
			{"id": "n-1", "street_class": "CALLE", "street_name": "NUEVA", "district_code": 30, "latitude": 40.42, "longitude": -3.70},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	var seed responses.SeedGazetteerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seed))
	assert.False(t, seed.ValidationPassed)
	assert.NotEmpty(t, seed.Warnings)

	w = doJSON(t, router, http.MethodPost, "/v1/admin/preprocess", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var run responses.PreprocessRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.NotEmpty(t, run.RunID)

	w = doJSON(t, router, http.MethodGet, "/v1/admin/preprocess/"+run.RunID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/admin/preprocess/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/admin/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
