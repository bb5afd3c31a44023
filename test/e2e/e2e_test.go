//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshrestha/imagetools/internal/config"
	"github.com/rshrestha/imagetools/internal/database"
	"github.com/rshrestha/imagetools/internal/model"
	"github.com/rshrestha/imagetools/internal/router"
	"github.com/rshrestha/imagetools/internal/storage"
)

type envelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// TestFullWorkflow walks the whole service through one user session:
// initial balance, a two-file WebP conversion, the resulting charge,
// transaction, history rows and downloads.
func TestFullWorkflow(t *testing.T) {
	dir := t.TempDir()
	db, err := database.NewSQLiteDB(filepath.Join(dir, "e2e.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{
		BaseURL:        "http://api.test",
		MaxFileSize:    10 << 20,
		InitialCredits: 10,
		Workers:        2,
	}
	s := router.New(db, storage.NewFileSystem(filepath.Join(dir, "outputs")), cfg)
	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	require.NoError(t, db.UpsertToken("tok-e2e", &model.User{ID: "e2e-user", Email: "e2e@example.com"}))

	get := func(path string) (int, envelope) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer tok-e2e")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var env envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp.StatusCode, env
	}

	// The first balance lookup creates the account.
	status, env := get("/v1/credits")
	require.Equal(t, http.StatusOK, status)
	var acct model.CreditAccount
	require.NoError(t, json.Unmarshal(env.Result, &acct))
	assert.Equal(t, 10, acct.Balance)

	// Convert two PNGs to WebP in one batch.
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("format", "webp"))
	require.NoError(t, mw.WriteField("quality", "70"))
	for _, name := range []string{"first.png", "second.png"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(encodePNG(t, 800, 600))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/process/convert-image", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok-e2e")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var procEnv envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&procEnv))
	require.True(t, procEnv.Success)

	var result struct {
		BatchID        string            `json:"batchId"`
		State          string            `json:"state"`
		Succeeded      int               `json:"succeeded"`
		CreditsCharged int               `json:"creditsCharged"`
		Downloads      map[string]string `json:"downloads"`
		Files          []struct {
			OutputName   string `json:"outputName"`
			OutputFormat string `json:"outputFormat"`
			Status       string `json:"status"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(procEnv.Result, &result))
	assert.Equal(t, "completed", result.State)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 4, result.CreditsCharged)
	require.Len(t, result.Files, 2)
	for _, f := range result.Files {
		assert.Equal(t, "webp", f.OutputFormat)
		assert.Equal(t, "completed", f.Status)
	}

	// Balance reflects exactly one four-credit deduction.
	status, env = get("/v1/credits")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Result, &acct))
	assert.Equal(t, 6, acct.Balance)

	status, env = get("/v1/credits/transactions")
	require.Equal(t, http.StatusOK, status)
	var txs []model.CreditTransaction
	require.NoError(t, json.Unmarshal(env.Result, &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, -4, txs[0].Amount)
	assert.Equal(t, "convert-image", txs[0].ToolUsed)

	// Two completed history rows, two credits each.
	status, env = get("/v1/history")
	require.Equal(t, http.StatusOK, status)
	var records []model.ProcessingRecord
	require.NoError(t, json.Unmarshal(env.Result, &records))
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, model.StatusCompleted, r.Status)
		assert.Equal(t, "webp", r.OutputFormat)
		assert.Equal(t, 2, r.CreditsUsed)
	}

	// Every download URL serves a WebP blob.
	require.Len(t, result.Downloads, 2)
	for name := range result.Downloads {
		dl, err := http.Get(srv.URL + "/v1/download/" + result.BatchID + "/" + name)
		require.NoError(t, err)
		data, err := io.ReadAll(dl.Body)
		dl.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, dl.StatusCode)
		assert.Equal(t, "image/webp", dl.Header.Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	}

	// A second batch that exceeds the remaining balance is refused
	// before any work happens.
	body = &bytes.Buffer{}
	mw = multipart.NewWriter(body)
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(encodePNG(t, 100, 100))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/v1/process/compress-image", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok-e2e")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	status, env = get("/v1/credits")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Result, &acct))
	assert.Equal(t, 6, acct.Balance)
}
