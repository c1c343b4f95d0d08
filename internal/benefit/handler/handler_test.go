package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amparo/internal/beneficiary"
	"amparo/internal/benefit/policy"
	"amparo/internal/benefit/service"
	"amparo/internal/benefit/store"
	"amparo/pkg/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.NewMemoryStore()

	p, err := policy.New(policy.DefaultCooldowns())
	require.NoError(t, err)

	engine := service.NewEngine(s, p, false, nil)
	registrar := service.NewRegistrar(engine, service.NewShardedTx(s),
		beneficiary.NewInMemoryDirectory("b-1", "b-2"), logger, nil)
	updater := service.NewUpdater(s, logger)

	h := New(engine, registrar, updater, logger, func(context.Context) error { return nil })
	router := chi.NewRouter()
	h.Register(router)
	return router, s
}

func registerReport(t *testing.T, router http.Handler, beneficiaryID, benefitType, providedAt string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.JSONRequest(t, http.MethodPost, "/reports", map[string]string{
		"beneficiary_id": beneficiaryID,
		"benefit_type":   benefitType,
		"reason":         "requested at front desk",
		"social_worker":  "worker-1",
		"provided_at":    providedAt,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("creates a report", func(t *testing.T) {
		rec := registerReport(t, router, "b-1", "COOKING_GAS", "2025-06-01")
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		assert.NotEmpty(t, resp["id"])
		assert.Equal(t, "COOKING_GAS", resp["benefit_type"])
		assert.Equal(t, "2025-06-01", resp["provided_at"])
	})

	t.Run("second delivery inside window returns 409 with next date", func(t *testing.T) {
		rec := registerReport(t, router, "b-1", "COOKING_GAS", "2025-06-10")
		require.Equal(t, http.StatusConflict, rec.Code)

		var resp map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "not_eligible", resp["error"])
		assert.Equal(t, "2025-07-01", resp["next_eligible_date"])
	})

	t.Run("unknown beneficiary returns 404", func(t *testing.T) {
		rec := registerReport(t, router, "ghost", "COOKING_GAS", "2025-06-01")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad benefit type returns 400", func(t *testing.T) {
		rec := registerReport(t, router, "b-1", "WINTER_COAT", "2025-06-01")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad date returns 400", func(t *testing.T) {
		rec := registerReport(t, router, "b-1", "COOKING_GAS", "June 1st")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-json content type is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestEvaluateEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	testutil.Given(t, "a quarterly basket delivered on 2025-01-01", func(t *testing.T) {
		rec := registerReport(t, router, "b-2", "QUARTERLY_BASKET", "2025-01-01")
		require.Equal(t, http.StatusCreated, rec.Code)

		testutil.When(t, "evaluated mid-window", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-2/eligibility/QUARTERLY_BASKET?asOf=2025-03-15", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]any
			testutil.DecodeJSON(t, rec, &resp)
			assert.Equal(t, false, resp["eligible"])
			assert.Equal(t, "2025-04-01", resp["next_eligible_date"])
			assert.Equal(t, "2025-01-01", resp["last_delivery_date"])
		})

		testutil.Then(t, "the boundary date is eligible", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-2/eligibility/QUARTERLY_BASKET?asOf=2025-04-01", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]any
			testutil.DecodeJSON(t, rec, &resp)
			assert.Equal(t, true, resp["eligible"])
		})
	})

	t.Run("no history means eligible with no dates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-1/eligibility/FUNERAL_AID", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, true, resp["eligible"])
		assert.NotContains(t, resp, "next_eligible_date")
	})

	t.Run("invalid asOf returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-1/eligibility/FUNERAL_AID?asOf=tomorrow", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateEndpoint(t *testing.T) {
	router, ledger := newTestRouter(t)

	rec := registerReport(t, router, "b-1", "FUNERAL_AID", "2025-05-20")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	testutil.DecodeJSON(t, rec, &created)
	reportID := created["id"].(string)

	t.Run("updates narrative fields", func(t *testing.T) {
		req := testutil.JSONRequest(t, http.MethodPatch, "/reports/"+reportID, map[string]string{
			"reason":        "documentation corrected",
			"social_worker": "worker-9",
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		assert.Equal(t, "documentation corrected", resp["reason"])
		assert.Equal(t, "worker-9", resp["social_worker"])
	})

	t.Run("attempting to change an anchor returns 422", func(t *testing.T) {
		for _, field := range []string{"beneficiary_id", "benefit_type", "provided_at"} {
			req := testutil.JSONRequest(t, http.MethodPatch, "/reports/"+reportID, map[string]string{
				field: "something-else",
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, field)

			var resp map[string]any
			testutil.DecodeJSON(t, rec, &resp)
			assert.Equal(t, "immutable_field", resp["error"])
			assert.Equal(t, field, resp["field"])
		}

		// The stored record is untouched.
		stored, err := ledger.FindByID(context.Background(), reportID)
		require.NoError(t, err)
		assert.Equal(t, "b-1", stored.BeneficiaryID)
		assert.True(t, stored.ProvidedAt.Equal(time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("missing report returns 404", func(t *testing.T) {
		req := testutil.JSONRequest(t, http.MethodPatch, "/reports/missing", map[string]string{"reason": "x"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHistoryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusCreated, registerReport(t, router, "b-1", "MONTHLY_BASKET", "2025-01-10").Code)
	require.Equal(t, http.StatusCreated, registerReport(t, router, "b-1", "MONTHLY_BASKET", "2025-02-10").Code)
	require.Equal(t, http.StatusCreated, registerReport(t, router, "b-1", "COOKING_GAS", "2025-02-01").Code)

	t.Run("full history newest first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-1/reports", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp []map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		require.Len(t, resp, 3)
		assert.Equal(t, "2025-02-10", resp[0]["provided_at"])
	})

	t.Run("filtered by type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-1/reports?type=COOKING_GAS", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp []map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		require.Len(t, resp, 1)
		assert.Equal(t, "COOKING_GAS", resp[0]["benefit_type"])
	})

	t.Run("unknown type filter returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/beneficiaries/b-1/reports?type=WINTER_COAT", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRemoveEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := registerReport(t, router, "b-1", "BIRTH_KIT", "2025-03-01")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	testutil.DecodeJSON(t, rec, &created)
	reportID := created["id"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/reports/"+reportID, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)

	t.Run("record survives as soft-deleted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/"+reportID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		testutil.DecodeJSON(t, rec, &resp)
		assert.NotNil(t, resp["deleted_at"])
	})
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
