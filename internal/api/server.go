// Package api is the HTTP surface of the pipeline: job submission,
// status polling, resume, and artifact retrieval. Thin by intent; all
// rules live in the pipeline and store packages.
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/veridica/internal/generate"
	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/pipeline"
	"github.com/ppiankov/veridica/internal/queue"
	"github.com/ppiankov/veridica/internal/store"
)

const maxUploadBytes = 32 << 20

// Server serves the REST API.
type Server struct {
	engine  *gin.Engine
	manager *pipeline.Manager
	store   *store.Store
	mirror  *queue.StatusMirror
	log     *zap.Logger
}

// NewServer builds the router. mirror may be nil; status reads then go
// straight to the store.
func NewServer(cfg model.ServerConfig, manager *pipeline.Manager, st *store.Store, mirror *queue.StatusMirror, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))
	engine.MaxMultipartMemory = maxUploadBytes

	s := &Server{engine: engine, manager: manager, store: st, mirror: mirror, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/pipeline", s.startPipeline)
	api.GET("/pipeline-jobs/:id", s.jobStatus)
	api.POST("/pipeline-jobs/:id/resume", s.resumeJob)
	api.GET("/pipeline-jobs/:id/results", s.jobResults)
	api.GET("/pipeline-jobs/:id/audit", s.jobAudit)
	api.GET("/pipeline-jobs/:id/content", s.jobContent)
	api.GET("/projects/:id/factsheet", s.projectFactsheet)
}

// Run blocks serving HTTP.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) startPipeline(c *gin.Context) {
	projectID := c.PostForm("project_id")
	params := model.JobParams{
		URL:                    c.PostForm("url"),
		Tone:                   model.Tone(c.PostForm("tone")),
		Audience:               model.Audience(c.PostForm("audience")),
		Provider:               c.PostForm("provider"),
		Model:                  c.PostForm("model"),
		ProceedWithAssumptions: c.PostForm("proceed_with_assumptions") == "true",
		AllowUnsafe:            c.PostForm("allow_unsafe") == "true",
	}

	var pdf []byte
	var filename string
	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
			return
		}
		defer f.Close()
		pdf, err = io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
			return
		}
		filename = fileHeader.Filename
	}

	job, err := s.manager.StartJob(c.Request.Context(), projectID, filename, pdf, params)
	if err != nil {
		if errors.Is(err, model.ErrProjectBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("starting job", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) jobStatus(c *gin.Context) {
	jobID := c.Param("id")

	if s.mirror != nil {
		if job, err := s.mirror.Get(c.Request.Context(), jobID); err == nil && job != nil && job.Status.Terminal() {
			c.JSON(http.StatusOK, gin.H{"job": job})
			return
		}
	}

	job, report, err := s.manager.Status(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"job": job}
	if report != nil {
		resp["preflight"] = report
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) resumeJob(c *gin.Context) {
	var body struct {
		ProceedWithAssumptions bool `json:"proceed_with_assumptions"`
		AllowUnsafe            bool `json:"allow_unsafe"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	job, err := s.manager.Resume(c.Request.Context(), c.Param("id"), pipeline.ResumeOverrides{
		ProceedWithAssumptions: body.ProceedWithAssumptions,
		AllowUnsafe:            body.AllowUnsafe,
	})
	if err != nil {
		if errors.Is(err, model.ErrJobTerminal) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) jobResults(c *gin.Context) {
	results, err := s.store.ListVerifications(c.Param("id"), c.Query("pass"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) jobAudit(c *gin.Context) {
	var report generate.AuditReport
	ok, err := s.store.GetStageOutput(c.Param("id"), model.StageAudit, &report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit not available yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) jobContent(c *gin.Context) {
	var output pipeline.ContentOutput
	ok, err := s.store.GetStageOutput(c.Param("id"), model.StageContent, &output)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "content not available yet"})
		return
	}
	c.JSON(http.StatusOK, output)
}

func (s *Server) projectFactsheet(c *gin.Context) {
	sheet, err := s.store.GetFactSheet(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sheet == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fact sheet for project"})
		return
	}
	c.JSON(http.StatusOK, sheet)
}
