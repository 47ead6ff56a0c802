package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/fieldops/fieldops/internal/access"
	"github.com/fieldops/fieldops/internal/app"
	"github.com/fieldops/fieldops/internal/auth"
	"github.com/fieldops/fieldops/internal/companies"
	"github.com/fieldops/fieldops/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "dev",
		HTTPAddr:             ":0",
		BaseURL:              "http://localhost",
		DBDSN:                "unused",
		JWTSecret:            "test-secret",
		LogLevel:             "error",
		RateLimitRPM:         120,
		SessionDays:          7,
		BackendURL:           "http://localhost:0",
		BackendTimeoutMS:     500,
		RoleResolveTimeoutMS: 3000,
		ArchiveDeclinedDays:  90,
	}
}

func TestE2E_CompanyInvites_Members_LastOwnerGuardrails_Audit(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	ownerClient, ownerCSRF := newCSRFClient(t, srv.URL)
	inviteeClient, inviteeCSRF := newCSRFClient(t, srv.URL)

	ownerEmail := "owner@example.com"
	inviteeEmail := "invitee@example.com"
	password := "password123"

	ownerUserID := signupAndLogin(t, ownerClient, srv.URL, ownerCSRF, ownerEmail, password)
	inviteeUserID := signupAndLogin(t, inviteeClient, srv.URL, inviteeCSRF, inviteeEmail, password)

	companyID := createCompany(t, ownerClient, srv.URL, ownerCSRF, "Acme Field Service", "acme-field-service")

	inviteToken := createInvite(t, ownerClient, srv.URL, ownerCSRF, companyID, inviteeEmail, access.RoleTechnician)

	acceptInvite(t, inviteeClient, srv.URL, inviteeCSRF, inviteToken)

	members := listMembers(t, ownerClient, srv.URL, companyID)
	require.Len(t, members, 2)
	require.Contains(t, []uuid.UUID{members[0].UserID, members[1].UserID}, ownerUserID)
	require.Contains(t, []uuid.UUID{members[0].UserID, members[1].UserID}, inviteeUserID)

	updateRole(t, ownerClient, srv.URL, ownerCSRF, companyID, inviteeUserID, access.RoleSales)

	// The sole owner cannot be demoted.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+ownerUserID.String(), ownerCSRF, http.StatusConflict, map[string]any{
			"role": string(access.RoleMember),
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	// A non-owner cannot touch the owner role.
	{
		errEnv := doJSONExpectError(t, inviteeClient, http.MethodPut, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+ownerUserID.String(), inviteeCSRF, http.StatusForbidden, map[string]any{
			"role": string(access.RoleMember),
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	removeMember(t, ownerClient, srv.URL, ownerCSRF, companyID, inviteeUserID)

	// The sole owner cannot be removed either.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/companies/"+companyID.String()+"/members/"+ownerUserID.String(), ownerCSRF, http.StatusConflict, nil)
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	entries := listCompanyAudit(t, ownerClient, srv.URL, companyID, 50)
	actions := make(map[string]bool)
	for _, e := range entries {
		actions[e.Action] = true
	}
	require.True(t, actions["company.invite_created"], "missing company.invite_created audit event")
	require.True(t, actions["company.invite_accepted"], "missing company.invite_accepted audit event")
	require.True(t, actions["company.member_role_updated"], "missing company.member_role_updated audit event")
	require.True(t, actions["company.member_removed"], "missing company.member_removed audit event")
}

func TestE2E_LegacyOfficeRoleRejectedOnInvite(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(app.NewRouter(pool, testConfig()))
	t.Cleanup(srv.Close)

	client, csrf := newCSRFClient(t, srv.URL)
	signupAndLogin(t, client, srv.URL, csrf, "boss@example.com", "password123")
	companyID := createCompany(t, client, srv.URL, csrf, "Legacy Co", "legacy-co")

	// The legacy "office" role normalizes to admin at the boundary.
	inviteResp := postJSONExpectStatus(t, client, srv.URL+"/api/v1/companies/"+companyID.String()+"/invites", csrf, http.StatusCreated, map[string]any{
		"email": "clerk@example.com",
		"role":  "office",
	})

	var parsed struct {
		Invite struct {
			Role access.Role `json:"role"`
		} `json:"invite"`
	}
	require.NoError(t, json.Unmarshal(inviteResp.Data, &parsed))
	require.Equal(t, access.RoleAdmin, parsed.Invite.Role)
}

func newCSRFClient(t *testing.T, serverURL string) (*http.Client, string) {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	baseURL, err := url.Parse(serverURL)
	require.NoError(t, err)

	csrfToken, err := auth.GenerateCSRFToken()
	require.NoError(t, err)
	jar.SetCookies(baseURL, []*http.Cookie{{
		Name:  auth.CSRFCookieName,
		Value: csrfToken,
		Path:  "/",
	}})

	return client, csrfToken
}

func signupAndLogin(t *testing.T, client *http.Client, baseURL, csrfToken, email, password string) uuid.UUID {
	t.Helper()

	signupResp := postJSONExpectStatus(t, client, baseURL+"/api/v1/auth/signup", csrfToken, http.StatusCreated, map[string]any{
		"email":    email,
		"password": password,
	})

	var signup struct {
		UserID uuid.UUID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(signupResp.Data, &signup))
	require.NotEqual(t, uuid.Nil, signup.UserID)

	postJSONExpectStatus(t, client, baseURL+"/api/v1/auth/login", csrfToken, http.StatusOK, map[string]any{
		"email":    email,
		"password": password,
	})

	return signup.UserID
}

func createCompany(t *testing.T, client *http.Client, baseURL, csrfToken, name, slug string) uuid.UUID {
	t.Helper()

	resp := postJSONExpectStatus(t, client, baseURL+"/api/v1/companies", csrfToken, http.StatusCreated, map[string]any{
		"name": name,
		"slug": slug,
	})

	var parsed struct {
		Company struct {
			ID uuid.UUID `json:"id"`
		} `json:"company"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEqual(t, uuid.Nil, parsed.Company.ID)

	return parsed.Company.ID
}

func createInvite(t *testing.T, client *http.Client, baseURL, csrfToken string, companyID uuid.UUID, email string, role access.Role) string {
	t.Helper()

	resp := postJSONExpectStatus(t, client, baseURL+"/api/v1/companies/"+companyID.String()+"/invites", csrfToken, http.StatusCreated, map[string]any{
		"email": email,
		"role":  string(role),
	})

	var parsed struct {
		Invite struct {
			Token string `json:"token"`
		} `json:"invite"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &parsed))
	require.NotEmpty(t, parsed.Invite.Token)

	return parsed.Invite.Token
}

func acceptInvite(t *testing.T, client *http.Client, baseURL, csrfToken, token string) {
	t.Helper()

	postJSONExpectStatus(t, client, baseURL+"/api/v1/companies/invites/accept", csrfToken, http.StatusOK, map[string]any{
		"token": token,
	})
}

func listMembers(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID) []companies.MemberInfo {
	t.Helper()

	resp, err := client.Get(baseURL + "/api/v1/companies/" + companyID.String() + "/members")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", string(body))

	var env struct {
		RequestID string `json:"request_id"`
		Data      struct {
			Members []companies.MemberInfo `json:"members"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)

	return env.Data.Members
}

func updateRole(t *testing.T, client *http.Client, baseURL, csrfToken string, companyID, userID uuid.UUID, role access.Role) {
	t.Helper()

	doJSONExpectSuccess(t, client, http.MethodPut, baseURL+"/api/v1/companies/"+companyID.String()+"/members/"+userID.String(), csrfToken, http.StatusOK, map[string]any{
		"role": string(role),
	})
}

func removeMember(t *testing.T, client *http.Client, baseURL, csrfToken string, companyID, userID uuid.UUID) {
	t.Helper()

	doJSONExpectSuccess(t, client, http.MethodDelete, baseURL+"/api/v1/companies/"+companyID.String()+"/members/"+userID.String(), csrfToken, http.StatusOK, nil)
}

func listCompanyAudit(t *testing.T, client *http.Client, baseURL string, companyID uuid.UUID, limit int) []struct {
	Action string `json:"action"`
} {
	t.Helper()

	u := baseURL + "/api/v1/companies/" + companyID.String() + "/audit?limit=" + strconv.Itoa(limit)
	resp, err := client.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", string(body))

	var env struct {
		RequestID string `json:"request_id"`
		Data      struct {
			Entries []struct {
				Action string `json:"action"`
			} `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)

	return env.Data.Entries
}

func doJSONExpectSuccess(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectError(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) errorEnvelope {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.Error.RequestID)

	return env
}

func postJSONExpectStatus(t *testing.T, client *http.Client, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, http.MethodPost, urlStr, csrfToken, wantStatus, payload)

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectStatus(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) []byte {
	t.Helper()

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, bodyReader)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodDelete {
		req.Header.Set(auth.CSRFHeaderName, csrfToken)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(body))

	return body
}
