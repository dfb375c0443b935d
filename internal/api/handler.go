package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/pfinance/internal/ingest"
	"github.com/insightdelivered/pfinance/internal/models"
	"github.com/insightdelivered/pfinance/internal/writer"
)

const (
	balanceCacheTTL     = time.Minute
	balanceCacheCleanup = 5 * time.Minute
	ckBalanceStatus     = "balance"
)

// Pipeline is the ingestion service the handlers drive.
type Pipeline interface {
	Ingest(ctx context.Context, data []byte, kind models.SourceKind) (*ingest.Result, error)
	Balance(ctx context.Context) (*ingest.BalanceStatus, error)
	ValidateBalance(computed, asserted, base decimal.Decimal) models.BalanceValidation
}

// Ledger lists persisted transactions for export.
type Ledger interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

// IngestResponse is the JSON response from the /api/ingest endpoint.
type IngestResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Result  *ingest.Result `json:"result,omitempty"`
}

// ValidateRequest is the body of /api/balance/validate.
type ValidateRequest struct {
	Computed    decimal.Decimal `json:"computed"`
	Asserted    decimal.Decimal `json:"asserted"`
	BaseBalance decimal.Decimal `json:"baseBalance"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Pipeline  Pipeline
	Ledger    Ledger
	Log       zerolog.Logger
	Version   string
	StaticDir string

	status *cache.Cache
}

// NewHandler wires a Handler.
func NewHandler(p Pipeline, l Ledger, log zerolog.Logger, version string) *Handler {
	return &Handler{
		Pipeline: p,
		Ledger:   l,
		Log:      log,
		Version:  version,
		status:   cache.New(balanceCacheTTL, balanceCacheCleanup),
	}
}

// NewApp builds a fiber app with middleware and routes. maxUpload caps
// request bodies in bytes; zero keeps fiber's default.
func NewApp(h *Handler, maxUpload int) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             maxUpload,
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, GET, OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(h.logRequests)
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/ingest", h.HandleIngest)
	app.Get("/api/balance", h.HandleBalance)
	app.Post("/api/balance/validate", h.HandleValidate)
	app.Get("/api/transactions/export", h.HandleExport)

	// Serve the SPA; unknown non-API paths fall back to index.html
	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			return c.SendFile(h.StaticDir + "/index.html")
		})
	}
}

func (h *Handler) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	h.Log.Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("request")
	return err
}

func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(IngestResponse{Success: false, Error: err.Error()})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

// HandleIngest accepts a multipart upload in field "file" and an optional
// "kind" (pdf or spreadsheet; detected when omitted).
func (h *Handler) HandleIngest(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.", "")
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Failed to read uploaded file.", "")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Failed to read uploaded file.", "")
	}

	var kind models.SourceKind
	if k := c.FormValue("kind"); k != "" {
		kind, err = ingest.ParseKind(k)
	} else {
		kind, err = ingest.DetectKind(fh.Filename, data)
	}
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error(), "")
	}

	res, err := h.Pipeline.Ingest(c.UserContext(), data, kind)
	var fe *ingest.FatalError
	if errors.As(err, &fe) {
		return writeError(c, fiber.StatusUnprocessableEntity, err.Error(), fe.Reason)
	}
	if err != nil {
		return err
	}
	h.status.Delete(ckBalanceStatus)

	if res.Transactions == nil {
		res.Transactions = []models.Transaction{}
	}
	return c.JSON(IngestResponse{Success: true, Result: res})
}

// HandleBalance returns the running balance and its reconciliation.
func (h *Handler) HandleBalance(c *fiber.Ctx) error {
	if cached, found := h.status.Get(ckBalanceStatus); found {
		return c.JSON(cached)
	}
	st, err := h.Pipeline.Balance(c.UserContext())
	if err != nil {
		return err
	}
	h.status.Set(ckBalanceStatus, st, cache.DefaultExpiration)
	return c.JSON(st)
}

// HandleValidate compares the posted balances.
func (h *Handler) HandleValidate(c *fiber.Ctx) error {
	var req ValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid body: %v", err), "")
	}
	return c.JSON(h.Pipeline.ValidateBalance(req.Computed, req.Asserted, req.BaseBalance))
}

// HandleExport streams the ledger as CSV. An optional "base" query value
// adds a running balance column.
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	txs, err := h.Ledger.ListTransactions(c.UserContext())
	if err != nil {
		return err
	}
	l := &writer.Ledger{Transactions: txs}
	if b := c.Query("base"); b != "" {
		base, err := decimal.NewFromString(b)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid base %q", b), "")
		}
		l.BaseBalance = &base
	}

	var buf bytes.Buffer
	w := &writer.CSVWriter{IncludeHeader: c.Query("header") != "false"}
	if err := w.Write(&buf, l); err != nil {
		return err
	}
	c.Attachment("ledger.csv")
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

func writeError(c *fiber.Ctx, status int, msg, reason string) error {
	return c.Status(status).JSON(IngestResponse{
		Success: false,
		Error:   msg,
		Reason:  reason,
	})
}
