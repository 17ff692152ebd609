package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"churn-predictor/backend/internal/advice"
	"churn-predictor/backend/internal/artifact"
	"churn-predictor/backend/internal/features"
	"churn-predictor/backend/internal/metrics"
	"churn-predictor/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	BundlePath     string
	DBPath         string
	AllowedOrigins []string
	SilentDB       bool
	AIConfig       advice.Config
	DisableAI      bool
	MaxBatchRows   int
	// Clock overrides time.Now for tenure derivation.
	Clock func() time.Time
}

// Server wires HTTP handlers with the loaded bundle, persistence and advice.
type Server struct {
	bundle         *artifact.Bundle
	bundlePath     string
	db             *store.Database
	advisor        advice.Advisor
	aiEnabled      bool
	metrics        *metrics.Recorder
	notifier       *IncidentNotifier
	allowedOrigins []string
	maxBatchRows   int
	clock          func() time.Time
}

const defaultMaxBatchRows = 5000

// NewServer loads the bundle and constructs the API server. A bundle that
// fails to load is returned as an error so the process never serves without one.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.BundlePath) == "" {
		return nil, errors.New("bundle path required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, errors.New("db path required")
	}

	bundle, err := artifact.Load(cfg.BundlePath)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	var advisor advice.Advisor = advice.Canned{}
	aiEnabled := false
	if cfg.DisableAI {
		logrus.Info("AI advisor disabled via configuration")
	} else if client, err := advice.NewClient(cfg.AIConfig); err == nil {
		advisor = advice.WithFallback(client, advice.Canned{})
		aiEnabled = true
		logrus.WithField("model", cfg.AIConfig.Model).Info("AI advisor enabled")
	} else if errors.Is(err, advice.ErrDisabled) {
		logrus.Info("AI advisor disabled - no API key configured, using canned recommendations")
	} else {
		return nil, fmt.Errorf("ai advisor: %w", err)
	}

	server := &Server{
		bundle:         bundle,
		bundlePath:     cfg.BundlePath,
		db:             db,
		advisor:        advisor,
		aiEnabled:      aiEnabled,
		metrics:        metrics.NewRecorder(),
		notifier:       NewIncidentNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		maxBatchRows:   cfg.MaxBatchRows,
		clock:          cfg.Clock,
	}
	if server.maxBatchRows <= 0 {
		server.maxBatchRows = defaultMaxBatchRows
	}
	if server.clock == nil {
		server.clock = time.Now
	}

	host, _ := os.Hostname()
	deployment := &store.Deployment{
		Version:   bundle.Version(),
		Checksum:  bundle.Checksum(),
		Path:      cfg.BundlePath,
		Columns:   len(bundle.Columns()),
		Threshold: bundle.Classifier().Threshold(),
		Policy:    bundle.UnknownPolicy(),
		Host:      host,
	}
	if err := db.RecordDeployment(deployment); err != nil {
		logrus.WithError(err).Warn("record bundle deployment")
	}

	return server, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/options", s.handleOptions)
		api.POST("/predict", s.handlePredict)
		api.POST("/predict/batch", s.handleBatchPredict)
		api.GET("/incidents", s.handleListIncidents)
		api.GET("/incidents/stream", s.handleIncidentStream)
		api.GET("/deployments", s.handleListDeployments)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"bundle_version":    s.bundle.Version(),
		"websocket_clients": s.notifier.Clients(),
	})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, ConfigResponse{
		BundleVersion:  s.bundle.Version(),
		BundleChecksum: s.bundle.Checksum(),
		BundlePath:     s.bundlePath,
		Threshold:      s.bundle.Classifier().Threshold(),
		UnknownPolicy:  s.bundle.UnknownPolicy(),
		Columns:        s.bundle.Columns(),
		Categorical:    s.bundle.Encoder().FeatureNamesIn(),
		Numeric:        s.bundle.Scaler().FeatureNamesIn(),
		AdvisorEnabled: s.aiEnabled,
	})
}

func (s *Server) handleOptions(c *gin.Context) {
	c.JSON(http.StatusOK, features.Options())
}

func (s *Server) handleListIncidents(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}

	rows, total, err := s.db.ListIncidents(store.IncidentQuery{
		Kind:   c.Query("kind"),
		Offset: page * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]IncidentDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, IncidentFromModel(row))
	}
	c.JSON(http.StatusOK, IncidentsResponse{Items: dtos, Total: total})
}

func (s *Server) handleListDeployments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.ListDeployments(limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]DeploymentDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, DeploymentFromModel(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": dtos})
}

func (s *Server) handleIncidentStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("incident websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("incident websocket closed")
			} else {
				logrus.WithError(err).Warn("incident websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
