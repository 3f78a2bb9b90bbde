package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return JSONResponse(c, map[string]string{"ok": "yes"}) })
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })
	e.GET("/missing", func(c echo.Context) error { return AppErrorResponse(c, NotFoundError("no such thing")) })
}

func TestServer_RoutesAndMiddleware(t *testing.T) {
	s := NewServer(routes{}, WithAllowOrigins([]string{"http://localhost:3000"}, true))
	e := s.Echo()

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_NOT_FOUND"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_CORSRejectsUnknownOrigin(t *testing.T) {
	s := NewServer(routes{}, WithAllowOrigins([]string{"http://localhost:3000"}, true))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "http://evil.test")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServer_Preflight(t *testing.T) {
	s := NewServer(routes{}, WithAllowOrigins([]string{"http://localhost:3000"}, true))

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := NewServer(routes{}, WithMetricsPath(""), WithCORS(false))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var errGone = errors.New("gone")

func TestMapError(t *testing.T) {
	rules := []ErrorRule{{Target: errGone, Code: "ERR_GONE", Status: http.StatusGone}}

	got := MapError(fmt.Errorf("lookup: %w", errGone), rules...)
	require.NotNil(t, got)
	assert.Equal(t, http.StatusGone, got.Status)
	assert.Equal(t, "ERR_GONE", got.Code)
	assert.ErrorIs(t, got, errGone)

	got = MapError(errors.New("db password=hunter2"), rules...)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.NotContains(t, got.Message, "hunter2")

	assert.Nil(t, MapError(nil, rules...))
}

type sampleRequest struct {
	Name  string `query:"name" validate:"required,max=5"`
	Count *int   `json:"count" default:"3"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?name=abc", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	r := &sampleRequest{}
	require.Nil(t, ReadAndValidateRequest(c, r))
	require.NotNil(t, r.Count)
	assert.Equal(t, 3, *r.Count)

	req = httptest.NewRequest(http.MethodGet, "/?name=toolong", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	r = &sampleRequest{}
	verr := ReadAndValidateRequest(c, r)
	require.NotNil(t, verr)
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MAX", errs[0].Code)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "5", errs[0].Params["max"])
}

type datedRequest struct {
	Start string `json:"start" validate:"datetime=2006-01-02"`
}

func TestReadAndValidateRequest_DateFormat(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"start":"2025/01/01"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	verr := ReadAndValidateRequest(c, &datedRequest{})
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_DATETIME", errs[0].Code)
	assert.Equal(t, "start", errs[0].Field)
	assert.Equal(t, "start must be a date in YYYY-MM-DD format", errs[0].Message)
	assert.Equal(t, "YYYY-MM-DD", errs[0].Params["format"])
	assert.Equal(t, "2025/01/01", errs[0].Params["value"])
}
