package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/revoledger/src/database"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/processors"
	"github.com/username/revoledger/src/security"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
	"golang.org/x/time/rate"
)

const statement = "Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance\n" +
	"EXCHANGE,Current,2020-03-01 10:00:00,2020-03-01 10:00:00,Exchanged to BTC,-1000,0,EUR,COMPLETED,500\n" +
	"EXCHANGE,Current,2020-03-01 10:00:00,2020-03-01 10:00:00,Exchanged from EUR,0.1,0,BTC,COMPLETED,0.1\n" +
	"EXCHANGE,Current,2021-02-01 09:00:00,2021-02-01 09:00:00,Exchanged to EUR,-0.05,0,BTC,COMPLETED,0.05\n" +
	"EXCHANGE,Current,2021-02-01 09:00:00,2021-02-01 09:00:00,Exchanged from BTC,2000,0,EUR,COMPLETED,2500\n"

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, authService *security.AuthService) http.Handler {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(fmt.Sprintf("file:http_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := services.NewLedgerService(database.NewStore(db), processors.DefaultTaxYearRates(), cache.New(time.Minute, time.Minute), services.Options{
		ReferenceCurrency: "EUR",
		Export: processors.ExportSettings{
			DateFormat:        utils.DateFormatYYYYMMDD,
			MultiDates:        utils.MultiDateOptions{Format: utils.MultiDatesStatic, Text: "VARIOUS"},
			Description:       "#CURRENCY#",
			ShortTermCheckbox: "A",
			LongTermCheckbox:  "D",
		},
	})
	return NewAPIRouter(RouterConfig{LedgerService: svc, AuthService: authService, MaxUploadSizeBytes: 1 << 20})
}

func uploadRequest(t *testing.T, path, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndReadLedger(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, uploadRequest(t, "/api/files", statement))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result models.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 4, result.NewRows)
	assert.Equal(t, 2, result.Pairs)

	rec = serve(router, uploadRequest(t, "/api/files", statement))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/pairs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/pairs", nil)
	req.Header.Set("If-None-Match", etag)
	rec = serve(router, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/accounts/btc/sales?lots=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sales []models.SaleLine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sales))
	assert.Len(t, sales, 1)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/accounts/ETH/holdings", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, uploadRequest(t, "/api/files", "a,b\n1,2\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, uploadRequest(t, "/api/files", "%PDF-1.4 binary"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader("plain body"))
	rec = serve(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualPairEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/manual-pairs", strings.NewReader(`{"key1":"a","key2":"a"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/manual-pairs", strings.NewReader(`{"key1":"a","key2":"b"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, "/api/manual-pairs/a", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/manual-pairs", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaxEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)
	require.Equal(t, http.StatusCreated, serve(router, uploadRequest(t, "/api/files", statement)).Code)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/gains/2021?rate=0.5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var c models.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Len(t, c.ShortTerm, 1)
	assert.Equal(t, "4000", c.ShortTermUSD.Proceeds.String())

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/gains/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/gains/2021?rate=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/form8949/2021", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var form Form8949Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	require.Len(t, form.Rows["A"], 1)
	assert.Equal(t, "BTC", form.Rows["A"][0].A)
	require.Len(t, form.Pages, 1)
	assert.NotNil(t, form.Pages[0].Totals)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/form8949/2021?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "part,checkbox,a,b,c,d,e,f,g,h"))

	external := "checkbox,a,b,c,d,e,f,g,h\nB,Gold,01/05/2020,03/04/2021,100,50,,,50\n"
	rec = serve(router, uploadRequest(t, "/api/form8949/2021/external", external))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = serve(router, uploadRequest(t, "/api/form8949/2020/external", external))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/form8949/2021", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Len(t, form.Rows["B"], 1)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, "/api/form8949/2021/external", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/tax-years", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var years []int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &years))
	assert.Contains(t, years, 2021)
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)
	authService := security.NewAuthService(testSecret, hash, time.Hour)
	router := newTestRouter(t, authService)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"subject":"me","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"subject":"me","password":"s3cret"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	req = httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	assert.Equal(t, http.StatusOK, serve(router, req).Code)
}

func TestAuthMiddlewareTagsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := logger.L
	logger.L = logger.New(&buf, "info")
	t.Cleanup(func() { logger.L = previous })

	hash, err := security.HashPassword("s3cret")
	require.NoError(t, err)
	authService := security.NewAuthService(testSecret, hash, time.Hour)
	token, err := authService.Login("me", "s3cret")
	require.NoError(t, err)

	h := AuthMiddleware(authService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, serve(h, req).Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "inside handler", entry["msg"])
	assert.Equal(t, "me", entry["subject"])
}

func TestRateLimitAndCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORSMiddleware("http://localhost:3000")(RateLimitMiddleware(rate.NewLimiter(rate.Every(time.Hour), 1))(ok))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/files", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
