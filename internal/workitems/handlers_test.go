package workitems

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newItemRequest builds a request carrying the chi URL params for a
// work-item route.
func newItemRequest(t *testing.T, method, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("company_id", uuid.NewString())
	rctx.URLParams.Add("item_id", uuid.NewString())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleSchedule_RejectsMalformedTimestamp(t *testing.T) {
	for _, body := range []string{
		`{"scheduled_at":""}`,
		`{"scheduled_at":"tomorrow"}`,
		`{"scheduled_at":"2026-04-01"}`,
	} {
		rec := httptest.NewRecorder()
		HandleSchedule(nil, nil, nil)(rec, newItemRequest(t, http.MethodPut, body))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestHandleMarkPaid_RejectsOverlongPaymentMethod(t *testing.T) {
	body := `{"paid_at":"2026-04-01T09:00:00Z","payment_method":"` + strings.Repeat("x", 65) + `"}`

	rec := httptest.NewRecorder()
	HandleMarkPaid(nil, nil, nil)(rec, newItemRequest(t, http.MethodPut, body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMarkPaid_RejectsMalformedTimestamp(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleMarkPaid(nil, nil, nil)(rec, newItemRequest(t, http.MethodPut, `{"paid_at":"not-a-time"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
