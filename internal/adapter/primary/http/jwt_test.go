package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got uuid.UUID
	handler := AgencyAuth(testSecret)(func(c echo.Context) error {
		got = agencyID(c)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware errored: %v", err)
	}
	return rec, got
}

func TestAgencyAuthAccepts(t *testing.T) {
	want := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"agency_id": want.String(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	rec, got := runAuth(t, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got != want {
		t.Fatalf("agency id = %s, want %s", got, want)
	}
}

func TestAgencyAuthRejects(t *testing.T) {
	expired := signToken(t, testSecret, jwt.MapClaims{
		"agency_id": uuid.NewString(),
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, "other-secret", jwt.MapClaims{
		"agency_id": uuid.NewString(),
	})
	noAgency := signToken(t, testSecret, jwt.MapClaims{
		"sub": "someone",
	})
	badAgency := signToken(t, testSecret, jwt.MapClaims{
		"agency_id": "not-a-uuid",
	})

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
		{"missing agency claim", "Bearer " + noAgency},
		{"malformed agency claim", "Bearer " + badAgency},
	}
	for _, tc := range cases {
		rec, _ := runAuth(t, tc.header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, rec.Code)
		}
	}
}

func TestAgencyIDDefaultsToNil(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if got := agencyID(c); got != uuid.Nil {
		t.Fatalf("agency id = %s, want Nil on unauthenticated route", got)
	}
}
