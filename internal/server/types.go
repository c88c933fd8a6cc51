package server

import (
	"image"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzqiy/deteksi-kwh/internal/acquire"
	"github.com/rzqiy/deteksi-kwh/internal/pipeline"
	"github.com/rzqiy/deteksi-kwh/internal/store"
)

// processorInterface defines the methods the server needs from the cascade.
type processorInterface interface {
	Process(img image.Image, destDir string) (pipeline.MeterResult, error)
	ProcessFile(path string) (pipeline.MeterResult, error)
	Close() error
}

// repositoryInterface defines the persistence operations the server uses.
type repositoryInterface interface {
	UpsertAutomated(res store.AutomatedResult) (bool, error)
	Verify(req store.VerifyRequest) error
	VerifyAll(updates []store.VerdictUpdate) (int, error)
	List(filter store.ListFilter) ([]store.MeterRecord, error)
}

// fetcherFactory builds a portal fetcher from per-request session cookies.
type fetcherFactory func(jsessionID, poolACMT string) (acquire.Fetcher, error)

// Server holds the HTTP server state and dependencies.
type Server struct {
	processor   processorInterface
	repo        repositoryInterface
	newFetcher  fetcherFactory
	corsOrigin  string
	maxUploadMB int64
	artifactDir string
	workDir     string
	modelsDir   string
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	PipelineConfig pipeline.Config
	StoreConfig    store.Config
	PortalBaseURL  string
	WorkDir        string
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ModelInfo struct {
	Stage       string `json:"stage"`
	Path        string `json:"path"`
	LabelsPath  string `json:"labels_path"`
	Description string `json:"description"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type VerifyResponse struct {
	Success bool   `json:"success"`
	Applied int    `json:"applied,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a new reading server instance.
func NewServer(config Config) (*Server, error) {
	b := pipeline.NewBuilder().
		WithModelsDir(config.PipelineConfig.ModelsDir).
		WithArtifactDir(config.PipelineConfig.ArtifactDir).
		WithLinkPrefix(config.PipelineConfig.LinkPrefix).
		WithConfidenceThreshold(config.PipelineConfig.MeterState.ConfThreshold).
		WithIoUThreshold(config.PipelineConfig.MeterState.IoUThreshold).
		WithThreads(config.PipelineConfig.MeterState.NumThreads).
		WithMaxDigits(config.PipelineConfig.MaxDigits)
	if config.PipelineConfig.MeterState.GPU.UseGPU {
		b = b.WithGPU(true).WithGPUDevice(config.PipelineConfig.MeterState.GPU.DeviceID)
	}
	pl, err := b.Build()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(config.StoreConfig)
	if err != nil {
		_ = pl.Close()
		return nil, err
	}

	portalBase := config.PortalBaseURL
	return &Server{
		processor: pl,
		repo:      store.NewMeterRepository(db),
		newFetcher: func(jsessionID, poolACMT string) (acquire.Fetcher, error) {
			cfg := acquire.DefaultClientConfig()
			if portalBase != "" {
				cfg.BaseURL = portalBase
			}
			cfg.JSessionID = jsessionID
			cfg.PoolACMT = poolACMT
			return acquire.NewClient(cfg)
		},
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		artifactDir: pl.Config().ArtifactDir,
		workDir:     config.WorkDir,
		modelsDir:   pl.Config().ModelsDir,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.processor != nil {
		return s.processor.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/process", s.corsMiddleware(s.processHandler))
	mux.HandleFunc("/api/cleanup_uploads", s.corsMiddleware(s.cleanupUploadsHandler))
	mux.HandleFunc("/api/batch", s.corsMiddleware(s.batchHandler))
	mux.HandleFunc("/ws/batch", s.batchWebSocketHandler)
	mux.HandleFunc("/api/records", s.corsMiddleware(s.recordsHandler))
	mux.HandleFunc("/api/verify", s.corsMiddleware(s.verifyHandler))
	mux.HandleFunc("/api/verify/all", s.corsMiddleware(s.verifyAllHandler))

	// Annotated images are served from the artifact directory; uploaded
	// originals from the scratch directory while reviewers need them.
	prefix := "/" + strings.Trim(s.artifactDir, "/") + "/"
	mux.Handle(prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(s.artifactDir))))
	if s.workDir != "" {
		uploads := "/" + strings.Trim(s.workDir, "/") + "/"
		mux.Handle(uploads, http.StripPrefix(uploads, http.FileServer(http.Dir(s.workDir))))
	}
}
