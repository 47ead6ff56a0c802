package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/fieldops/internal/app"
	"github.com/fieldops/fieldops/internal/audit"
	"github.com/stretchr/testify/require"
)

func TestIntegration_SignupAndFailedLoginWriteActivityLog(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	client, csrf := newCSRFClient(t, srv.URL)
	userID := signupAndLogin(t, client, srv.URL, csrf, "activity@example.com", "password123")

	doJSONExpectStatus(t, client, http.MethodPost, srv.URL+"/api/v1/auth/login", csrf, http.StatusUnauthorized, map[string]any{
		"email":    "activity@example.com",
		"password": "wrong-password",
	})

	ctx := context.Background()

	var signupCount int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM activity_log WHERE action = $1 AND actor_user_id = $2
	`, audit.EventUserSignup, userID).Scan(&signupCount))
	require.Equal(t, 1, signupCount)

	var failedCount int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM activity_log
		WHERE action = $1 AND meta->>'email' = 'activity@example.com'
	`, audit.EventLoginFailed).Scan(&failedCount))
	require.Equal(t, 1, failedCount)
}
