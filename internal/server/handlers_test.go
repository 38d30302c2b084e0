package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootlens/lootlens/internal/catalog"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(2, 2, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartImage(t *testing.T, fields map[string]string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if imageData != nil {
		part, err := writer.CreateFormFile("image", "cell.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDetectHandler(t *testing.T) {
	det := &fakeDetector{}
	s := newTestServer(det)

	body, contentType := multipartImage(t, nil, testPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "deadbeefdeadbeef", resp.Result.Fingerprint)
	assert.Equal(t, 1, det.calls)
}

func TestDetectHandlerKindFilter(t *testing.T) {
	det := &fakeDetector{}
	s := newTestServer(det)

	body, contentType := multipartImage(t, map[string]string{"kinds": "weapon, tome"}, testPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.Kind{catalog.KindWeapon, catalog.KindTome}, det.lastKinds)
}

func TestDetectHandlerBadKind(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	body, contentType := multipartImage(t, map[string]string{"kinds": "potion"}, testPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectHandlerNoImage(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	body, contentType := multipartImage(t, map[string]string{"kinds": "item"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectHandlerInvalidImage(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	body, contentType := multipartImage(t, nil, []byte("not an image"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectHandlerPipelineError(t *testing.T) {
	s := newTestServer(&fakeDetector{err: errors.New("engine exploded")})

	body, contentType := multipartImage(t, nil, testPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.detectHandler(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStrategyHandlerGet(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategy", nil)
	rec := httptest.NewRecorder()
	s.strategyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StrategyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "current", resp.Strategy.Name)
}

func TestStrategyHandlerPutPreset(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/strategy", strings.NewReader(`{"preset":"fast"}`))
	rec := httptest.NewRecorder()
	s.strategyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fast", s.strategies.Active().Name)
}

func TestStrategyHandlerPutUnknownPreset(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/strategy", strings.NewReader(`{"preset":"warp"}`))
	rec := httptest.NewRecorder()
	s.strategyHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "current", s.strategies.Active().Name)
}

func TestStrategyHandlerPutEmptyBody(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/strategy", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.strategyHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStrategiesHandler(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies", nil)
	rec := httptest.NewRecorder()
	s.strategiesHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StrategiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "current", resp.Active)
	assert.Len(t, resp.Presets, 5)
	assert.Contains(t, resp.Presets, "accurate")
}

func TestCorrectionsExportEmpty(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/corrections", nil)
	rec := httptest.NewRecorder()
	s.correctionsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCorrectionsImport(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	blob := `[{"detected":"garlic","actual":"garlic_bread","confidence":0.7,"timestamp":"2026-08-01T10:00:00Z","imageHash":"abc"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(blob))
	rec := httptest.NewRecorder()
	s.correctionsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.ledger.Len())
}

func TestCorrectionsImportMalformed(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(`[{"detected":`))
	rec := httptest.NewRecorder()
	s.correctionsHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.ledger.Len())
}

func TestCorrectionsRecordSingle(t *testing.T) {
	det := &fakeDetector{}
	s := newTestServer(det)

	body := `{"detectedId":"garlic","actualId":"garlic_bread","confidence":0.7,"imageHash":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.correctionsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, det.corrections, 1)
	assert.Equal(t, "garlic", det.corrections[0].Detected)
	assert.Equal(t, "garlic_bread", det.corrections[0].Actual)
}

func TestCorrectionsRecordInvalid(t *testing.T) {
	s := newTestServer(&fakeDetector{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(`{"detectedId":""}`))
	rec := httptest.NewRecorder()
	s.correctionsHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds("")
	require.NoError(t, err)
	assert.Nil(t, kinds)

	kinds, err = parseKinds("item,character")
	require.NoError(t, err)
	assert.Equal(t, []catalog.Kind{catalog.KindItem, catalog.KindCharacter}, kinds)

	_, err = parseKinds("item,unknown")
	assert.Error(t, err)
}
