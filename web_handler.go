package main

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pivolan/entropy_analyzer/plot"
	"github.com/pivolan/entropy_analyzer/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20

	downloadFileName = "analysis_results.csv"
)

var (
	//go:embed templates/*
	templatesFS embed.FS

	addrFlag = &cli.StringFlag{
		Name:  "addr",
		Usage: "Address to listen on (overrides HTTP_ADDR)",
	}

	serveCmd = &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the web interface",
		Flags:   []cli.Flag{addrFlag},
		Action:  cmdServe,
	}
)

func cmdServe(c *cli.Context) error {
	cfg := getConfig(c)
	address := cfg.Config.HTTPAddr
	if v := c.String(addrFlag.Name); v != "" {
		address = v
	}

	s := &http.Server{
		Addr:           address,
		Handler:        newRouter(cfg),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("error starting server")
			done <- syscall.SIGTERM
		}
	}()
	log.WithField("address", address).Info("server started")

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("error shutting down server")
	}
	return nil
}

type webHandler struct {
	store     store.Store
	analyzer  *analysis.Analyzer
	maxUpload int64
}

func newRouter(cfg *appConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := &webHandler{
		store:     cfg.Store,
		analyzer:  cfg.Analyzer,
		maxUpload: cfg.Config.MaxUploadMB << 20,
	}

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(template.FuncMap{
		"score":    formatNullable,
		"float":    formatFloat,
		"metric":   metricCell,
		"entropy":  func(m models.Metric) string { return formatMetric(m, models.FieldEntropy) },
		"distinct": func(m models.Metric) string { return formatMetric(m, models.FieldDistinct) },
		"mscore":   func(m models.Metric) string { return formatMetric(m, models.FieldScore) },
		"position": func(i int) int { return i + 1 },
	}).ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", h.index)
	r.POST("/upload", h.upload)
	r.POST("/records/:id/delete", h.deleteRecord)
	r.POST("/reset", h.reset)
	r.GET("/download", h.download)
	r.GET("/records/:id/chart.png", h.recordChart)
	r.GET("/charts/scores", h.scoresChart)

	api := r.Group("/api")
	api.GET("/records", h.apiList)
	api.DELETE("/records/:id", h.apiDelete)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}

// uploadMessage reports the outcome of one uploaded file.
type uploadMessage struct {
	File     string
	ID       string
	Record   *models.Record
	Warnings []string
	Error    string
}

type pageData struct {
	Records    []models.Record
	Attributes []string
	Summary    analysis.Summary
	Uploads    []uploadMessage
	Error      string
	Corrupted  bool
}

func (h *webHandler) render(c *gin.Context, status int, data pageData) {
	records, err := h.store.ListAll(c.Request.Context())
	switch {
	case store.IsCorrupted(err):
		data.Corrupted = true
		data.Error = err.Error()
	case err != nil:
		data.Error = err.Error()
	default:
		data.Records = records
		data.Attributes = attributesOf(records)
		data.Summary = analysis.Summarize(records)
	}
	c.HTML(status, "index.html", data)
}

// index assigns identifiers to rows saved without one so that every listed
// record can be deleted and charted.
func (h *webHandler) index(c *gin.Context) {
	n, err := h.store.MigrateMissingIdentifier(c.Request.Context())
	switch {
	case err != nil && !store.IsCorrupted(err):
		log.WithError(err).Error("error assigning identifiers")
	case n > 0:
		log.WithField("records", n).Info("identifiers assigned to legacy results")
	}
	h.render(c, http.StatusOK, pageData{Error: c.Query("err")})
}

func (h *webHandler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		h.render(c, http.StatusBadRequest, pageData{Error: "cannot read upload: " + err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		h.render(c, http.StatusBadRequest, pageData{Error: "no files selected"})
		return
	}

	var msgs []uploadMessage
	for _, fh := range files {
		msg := uploadMessage{File: fh.Filename}
		f, err := fh.Open()
		if err != nil {
			msg.Error = err.Error()
			msgs = append(msgs, msg)
			continue
		}
		res, err := h.analyzer.Analyze(c.Request.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			log.WithError(err).WithField("file", fh.Filename).Warn("upload rejected")
			msg.Error = err.Error()
			msgs = append(msgs, msg)
			continue
		}
		msg.ID = res.Record.ID
		msg.Record = &res.Record
		msg.Warnings = res.Warnings
		msgs = append(msgs, msg)
	}
	h.render(c, http.StatusOK, pageData{Uploads: msgs})
}

func (h *webHandler) deleteRecord(c *gin.Context) {
	if _, err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.render(c, http.StatusInternalServerError, pageData{Error: err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *webHandler) reset(c *gin.Context) {
	if err := h.store.DeleteAll(c.Request.Context()); err != nil {
		h.render(c, http.StatusInternalServerError, pageData{Error: err.Error()})
		return
	}
	log.Info("results reset from web interface")
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *webHandler) download(c *gin.Context) {
	records, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	var buf bytes.Buffer
	if err := store.EncodeCSV(&buf, records); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+downloadFileName+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *webHandler) recordChart(c *gin.Context) {
	rec, err := h.find(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	png, err := plot.RecordChart(*rec)
	if err != nil {
		if errors.Is(err, plot.ErrNoData) {
			c.String(http.StatusNotFound, err.Error())
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *webHandler) scoresChart(c *gin.Context) {
	records, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	var buf bytes.Buffer
	if err := plot.RenderScores(&buf, records); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *webHandler) apiList(c *gin.Context) {
	records, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "corrupted": store.IsCorrupted(err)})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *webHandler) apiDelete(c *gin.Context) {
	deleted, err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.Status(http.StatusNoContent)
		return
	}
	c.Status(http.StatusAccepted)
}

var errRecordNotFound = errors.New("record not found")

func (h *webHandler) find(ctx context.Context, id string) (*models.Record, error) {
	records, err := h.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, errRecordNotFound
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errRecordNotFound):
		return http.StatusNotFound
	case store.IsCorrupted(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// attributesOf returns the union of attributes over records in canonical order.
func attributesOf(records []models.Record) []string {
	union := make(map[string]struct{})
	for _, r := range records {
		for a := range r.Metrics {
			union[a] = struct{}{}
		}
	}
	return models.OrderAttributes(union)
}

func metricCell(r models.Record, attr string) string {
	m, ok := r.Metrics[attr]
	if !ok {
		return notAvailable
	}
	return formatMetric(m, models.FieldEntropy)
}
