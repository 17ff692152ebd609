package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churn-predictor/backend/internal/artifact"
)

const shippedBundle = "../artifact/mtn_churn_lr.json"

var fixedClock = func() time.Time { return time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, bundlePath string) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	server, err := NewServer(Config{
		BundlePath: bundlePath,
		DBPath:     filepath.Join(t.TempDir(), "churn.db"),
		SilentDB:   true,
		DisableAI:  true,
		Clock:      fixedClock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return server, router
}

func exampleBody() map[string]any {
	return map[string]any{
		"age":                       45,
		"gender":                    "Male",
		"state":                     "Lagos",
		"mtn_device":                "Mobile SIM Card",
		"satisfaction_rate":         7,
		"subscription_plan":         "165GB Monthly Plan",
		"unit_price":                1000,
		"number_of_times_purchased": 5,
		"total_revenue":             "5000",
		"data_usage":                10.0,
		"customer_tenure_in_months": 12,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRefusesBrokenBundle(t *testing.T) {
	_, err := NewServer(Config{
		BundlePath: filepath.Join(t.TempDir(), "missing.json"),
		DBPath:     filepath.Join(t.TempDir(), "churn.db"),
		DisableAI:  true,
	})
	assert.ErrorIs(t, err, artifact.ErrArtifactLoad)
}

func TestHealthAndConfig(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	rec := doJSON(t, router, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "mtn-churn-lr-2024.06", cfg.BundleVersion)
	assert.Equal(t, 0.5, cfg.Threshold)
	assert.Equal(t, artifact.UnknownIgnore, cfg.UnknownPolicy)
	assert.Len(t, cfg.Columns, 40)
	assert.False(t, cfg.AdvisorEnabled)

	rec = doJSON(t, router, http.MethodGet, "/api/options", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mobile SIM Card")

	rec = doJSON(t, router, http.MethodGet, "/api/deployments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mtn-churn-lr-2024.06")
}

func TestPredict(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	rec := doJSON(t, router, http.MethodPost, "/api/predict", exampleBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 0.4272042145140031, resp.ChurnProbability, 1e-12)
	assert.False(t, resp.ChurnLabel)
	assert.Equal(t, "No", resp.ChurnStatus)
	assert.Equal(t, "42.7%", resp.ProbabilityDisplay)
	assert.Equal(t, "medium", resp.RiskBand)
	assert.Equal(t, "canned", resp.AdviceSource)
	assert.NotEmpty(t, resp.Recommendation)
	assert.Len(t, resp.RequestID, 36)

	rec = doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `churn_predictions_total{churn="no"} 1`)
}

func TestPredictFromPurchaseDate(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	body := exampleBody()
	delete(body, "customer_tenure_in_months")
	body["date_of_purchase"] = "2023-06-30"

	rec := doJSON(t, router, http.MethodPost, "/api/predict", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.TenureMonths)
	assert.InDelta(t, 0.4272042145140031, resp.ChurnProbability, 1e-12)
}

func TestPredictRejectsInvalidField(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	body := exampleBody()
	body["gender"] = "Unknown"
	rec := doJSON(t, router, http.MethodPost, "/api/predict", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "gender", payload["field"])
	assert.Equal(t, kindInvalidField, payload["kind"])

	rec = doJSON(t, router, http.MethodGet, "/api/incidents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incidents IncidentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	assert.Zero(t, incidents.Total, "caller errors must not raise incidents")
}

func TestPredictRejectsOmittedNumericFields(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	for _, field := range []string{"number_of_times_purchased", "total_revenue", "data_usage"} {
		t.Run(field, func(t *testing.T) {
			body := exampleBody()
			delete(body, field)
			rec := doJSON(t, router, http.MethodPost, "/api/predict", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var payload map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Equal(t, field, payload["field"])
		})
	}
}

func TestPredictSchemaMismatchRaisesIncident(t *testing.T) {
	bundle := `{
  "version": "needs-tenure-days",
  "classifier": {"coefficients": [0.1, 0.2, 0.3, -0.4]},
  "encoder": {"features": [{"name": "gender", "categories": ["Female", "Male"]}]},
  "scaler": {"features": [{"name": "age", "mean": 40, "scale": 10}, {"name": "tenure_days", "mean": 300, "scale": 100}]},
  "columns": ["age", "tenure_days", "gender_Female", "gender_Male"]
}`
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(bundle), 0o600))

	server, router := newTestServer(t, path)

	rec := doJSON(t, router, http.MethodPost, "/api/predict", exampleBody())
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), kindSchemaMismatch)

	rec = doJSON(t, router, http.MethodGet, "/api/incidents?kind=schema_mismatch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incidents IncidentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	require.EqualValues(t, 1, incidents.Total)
	assert.Equal(t, "needs-tenure-days", incidents.Items[0].BundleVersion)
	assert.Contains(t, incidents.Items[0].Message, "tenure_days")

	last := server.notifier.Last()
	require.NotNil(t, last)
	assert.Equal(t, "incident", last.Type)
}

func TestBatchPredict(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	csvBody := strings.Join([]string{
		"age,gender,state,mtn_device,satisfaction_rate,subscription_plan,unit_price,number_of_times_purchased,total_revenue,data_usage,customer_tenure_in_months",
		"45,Male,Lagos,Mobile SIM Card,7,165GB Monthly Plan,1000,5,5000,10.0,12",
		"200,Male,Lagos,Mobile SIM Card,7,165GB Monthly Plan,1000,5,5000,10.0,12",
	}, "\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("customers", "customers.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	header := rows[0]
	require.Equal(t, "error", header[len(header)-1])

	first := rows[1]
	assert.Equal(t, "0.427204", first[len(first)-4])
	assert.Equal(t, "No", first[len(first)-3])
	assert.Equal(t, "medium", first[len(first)-2])
	assert.Empty(t, first[len(first)-1])

	second := rows[2]
	assert.Contains(t, second[len(second)-1], "invalid age")
}

func TestBatchPredictReportsBlankNumericCells(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)

	csvBody := strings.Join([]string{
		"age,gender,state,mtn_device,satisfaction_rate,subscription_plan,unit_price,number_of_times_purchased,total_revenue,data_usage,customer_tenure_in_months",
		"45,Male,Lagos,Mobile SIM Card,7,165GB Monthly Plan,1000,,,,12",
	}, "\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("customers", "customers.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Empty(t, row[len(row)-4], "no probability for an incomplete row")
	assert.Contains(t, row[len(row)-1], "invalid number_of_times_purchased: is required")
}

func TestBatchPredictRequiresFile(t *testing.T) {
	_, router := newTestServer(t, shippedBundle)
	rec := doJSON(t, router, http.MethodPost, "/api/predict/batch", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
