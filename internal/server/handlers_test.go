package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzqiy/deteksi-kwh/internal/acquire"
	"github.com/rzqiy/deteksi-kwh/internal/pipeline"
	"github.com/rzqiy/deteksi-kwh/internal/store"
)

type stubProcessor struct {
	result   pipeline.MeterResult
	err      error
	destDirs []string
}

func (p *stubProcessor) Process(_ image.Image, destDir string) (pipeline.MeterResult, error) {
	p.destDirs = append(p.destDirs, destDir)
	return p.result, p.err
}

func (p *stubProcessor) ProcessFile(string) (pipeline.MeterResult, error) {
	return p.result, p.err
}

func (p *stubProcessor) Close() error { return nil }

type stubRepo struct {
	records    []store.MeterRecord
	listFilter store.ListFilter
	listErr    error
	verifyErr  error
	upserts    []store.AutomatedResult
	verdicts   []store.VerdictUpdate
}

func (r *stubRepo) UpsertAutomated(res store.AutomatedResult) (bool, error) {
	r.upserts = append(r.upserts, res)
	return true, nil
}

func (r *stubRepo) Verify(store.VerifyRequest) error { return r.verifyErr }

func (r *stubRepo) VerifyAll(updates []store.VerdictUpdate) (int, error) {
	r.verdicts = updates
	return len(updates), nil
}

func (r *stubRepo) List(filter store.ListFilter) ([]store.MeterRecord, error) {
	r.listFilter = filter
	return r.records, r.listErr
}

type stubServerFetcher struct {
	err error
}

func (f *stubServerFetcher) DownloadPhoto(_ context.Context, idpel, blth, dir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", idpel, blth))
	return path, os.WriteFile(path, []byte("img"), 0o600)
}

func testServer(t *testing.T, proc *stubProcessor, repo *stubRepo, fetchErr error) *Server {
	t.Helper()
	return &Server{
		processor: proc,
		repo:      repo,
		newFetcher: func(jsessionID, poolACMT string) (acquire.Fetcher, error) {
			return &stubServerFetcher{err: fetchErr}, nil
		},
		corsOrigin:  "*",
		maxUploadMB: 10,
		artifactDir: t.TempDir(),
		workDir:     t.TempDir(),
		modelsDir:   filepath.Join("opt", "cascade-models"),
	}
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestModelsHandler(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "meter-state", resp.Models[0].Stage)
	for _, m := range resp.Models {
		assert.True(t, strings.HasPrefix(m.Path, s.modelsDir+string(filepath.Separator)))
		assert.True(t, strings.HasPrefix(m.LabelsPath, s.modelsDir+string(filepath.Separator)))
	}
}

func TestCleanupUploadsHandler(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(s.workDir, "a.jpg"), []byte("img"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.workDir, "b.jpg"), []byte("img"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(s.workDir, "keep"), 0o750))

	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/api/cleanup_uploads", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["success"])

	entries, err := os.ReadDir(s.workDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name())
}

func TestCleanupUploadsMethodNotAllowed(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/cleanup_uploads", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodOptions, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func uploadForm(t *testing.T, field string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range filenames {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		require.NoError(t, png.Encode(fw, img))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestProcessHandler(t *testing.T) {
	proc := &stubProcessor{result: pipeline.MeterResult{
		MeterState:     pipeline.StateLegible,
		Reading:        "12345",
		StatusText:     "Status: kwh_jelas -> Angka: 12345",
		AnnotationLink: "/static/results/a.jpg",
	}}
	s := testServer(t, proc, &stubRepo{}, nil)

	body, contentType := uploadForm(t, "images", "meter1.png", "meter2.png")
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []UploadItemResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "meter1.png", results[0].Filename)
	assert.Equal(t, "Status: kwh_jelas -> Angka: 12345", results[0].StatusText)
	assert.Equal(t, "/static/results/a.jpg", results[0].ImageURL)

	// Interactive uploads annotate into the transient uploads area.
	require.Len(t, proc.destDirs, 2)
	assert.Equal(t, s.workDir, proc.destDirs[0])
	assert.Equal(t, s.workDir, proc.destDirs[1])
}

func TestProcessHandlerNoFiles(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	body, contentType := uploadForm(t, "other", "x.png")
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func batchForm(t *testing.T, fields map[string]string, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if csv != "" {
		fw, err := mw.CreateFormFile("reference", "ref.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(csv))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestBatchHandler(t *testing.T) {
	proc := &stubProcessor{result: pipeline.MeterResult{
		StatusText:     "Status: kwh_jelas -> Angka: 12345",
		Reading:        "12345",
		AnnotationLink: "/static/results/a.jpg",
	}}
	repo := &stubRepo{}
	s := testServer(t, proc, repo, nil)

	body, contentType := batchForm(t, map[string]string{
		"jsessionid": "sess",
		"poolacmt":   "pool",
		"blth":       "202508",
	}, "IDPEL,SAHLWBP\n111,100\n222,200\n")
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []acquire.ItemResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "111_202508.jpg", results[0].Filename)
	require.Len(t, repo.upserts, 2)
	assert.Equal(t, "202508", repo.upserts[0].BLTH)
	assert.Equal(t, "100", repo.upserts[0].SAHLWBP)
}

func TestBatchHandlerMissingFields(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	body, contentType := batchForm(t, map[string]string{"blth": "202508"}, "IDPEL\n111\n")
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchHandlerAuthExpired(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, acquire.ErrAuthExpired)

	body, contentType := batchForm(t, map[string]string{
		"jsessionid": "sess",
		"poolacmt":   "pool",
		"blth":       "202508",
	}, "IDPEL\n111\n")
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "kedaluwarsa")
}

func TestRecordsHandler(t *testing.T) {
	repo := &stubRepo{records: []store.MeterRecord{
		{BLTH: "202508", IDPEL: "111", SAI: "12345"},
	}}
	s := testServer(t, &stubProcessor{}, repo, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/records?filter=unverified", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.FilterUnverified, repo.listFilter)

	var records []store.MeterRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "12345", records[0].SAI)
}

func TestVerifyHandler(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	payload, _ := json.Marshal(store.VerifyRequest{
		BLTH: "202508", IDPEL: "111", VER: store.VerificationSesuai,
		KET: "checked", StandVerifikasi: "12345",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(payload))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestVerifyHandlerValidation(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader(`{"blth":"202508"}`))
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader("not json"))
	rec = doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyHandlerNotFound(t *testing.T) {
	s := testServer(t, &stubProcessor{}, &stubRepo{verifyErr: store.ErrNotFound}, nil)

	payload, _ := json.Marshal(store.VerifyRequest{
		BLTH: "202508", IDPEL: "999", VER: store.VerificationTidak,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(payload))
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyAllHandler(t *testing.T) {
	repo := &stubRepo{}
	s := testServer(t, &stubProcessor{}, repo, nil)

	payload, _ := json.Marshal([]store.VerdictUpdate{
		{BLTH: "202508", IDPEL: "111", VER: store.VerificationSesuai},
		{BLTH: "202508", IDPEL: "222", VER: store.VerificationTidak},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/verify/all", bytes.NewReader(payload))
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Applied)
	assert.Len(t, repo.verdicts, 2)
}
