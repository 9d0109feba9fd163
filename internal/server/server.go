// Package server exposes the pipeline over HTTP: a Telegram webhook endpoint
// plus direct parse and register endpoints for scripted use.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"kassabot/internal/allocate"
	"kassabot/internal/bot"
	"kassabot/internal/ledger"
	"kassabot/internal/logging"
	"kassabot/internal/models"
	"kassabot/internal/pipeline"
)

// webhookSecretHeader carries the secret Telegram echoes back on webhook
// calls, set when the webhook was registered.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUploadSize bounds receipt uploads on the direct endpoints.
const maxUploadSize = 20 << 20

// Server routes HTTP traffic to the chat handler and the pipeline.
type Server struct {
	router        *mux.Router
	handler       *bot.Handler
	runner        bot.Runner
	ledger        ledger.Client
	distinguished string
	secondary     string
	webhookSecret string
	log           logging.Logger
}

// New builds the router. The chat handler may be nil when only the direct
// endpoints are used; the webhook then responds 503. distinguished and
// secondary name the configured members for single-item registration.
func New(handler *bot.Handler, runner bot.Runner, client ledger.Client,
	distinguished, secondary, webhookSecret string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetLogger()
	}
	s := &Server{
		router:        mux.NewRouter(),
		handler:       handler,
		runner:        runner,
		ledger:        client,
		distinguished: distinguished,
		secondary:     secondary,
		webhookSecret: webhookSecret,
		log:           logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/parse", s.handleParse).Methods(http.MethodPost)
	s.router.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// ServeHTTP makes the server a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret == "" || r.Header.Get(webhookSecretHeader) != s.webhookSecret {
		respondWithError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}
	if s.handler == nil {
		respondWithError(w, http.StatusServiceUnavailable, "chat handler not configured")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	if err := s.handler.HandleUpdate(r.Context(), update); err != nil {
		// Telegram retries non-2xx responses; the chat already saw the error.
		s.log.WithError(err).Error("webhook update failed")
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseResponse is the JSON shape of /parse and /register results.
type parseResponse struct {
	Date             string                    `json:"date"`
	Total            string                    `json:"total"`
	FromCache        bool                      `json:"from_cache"`
	Mismatch         *mismatchResponse         `json:"mismatch,omitempty"`
	Buckets          []bucketResponse          `json:"buckets"`
	SubmittedEntries int                       `json:"submitted_entries"`
	SubmissionErrors []string                  `json:"submission_errors,omitempty"`
}

type mismatchResponse struct {
	PrintedTotal string `json:"printed_total"`
	ComputedSum  string `json:"computed_sum"`
}

type bucketResponse struct {
	Name  string         `json:"name"`
	Group string         `json:"group"`
	Total string         `json:"total"`
	Items []itemResponse `json:"items"`
}

type itemResponse struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	s.process(w, r, false)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.registerItem(w, r)
		return
	}
	s.process(w, r, true)
}

// parseRequest is the JSON body of a path-based /parse call, for ad-hoc runs
// against receipts already on the server's disk.
type parseRequest struct {
	Path            string `json:"path"`
	Group           string `json:"group"`
	Payer           string `json:"payer"`
	SecondaryAmount string `json:"secondary_amount"`
}

// process handles the receipt endpoints: either a multipart form with the
// receipt under "file" plus group, payer, and optional secondary_amount
// fields, or a JSON body naming a local path.
func (s *Server) process(w http.ResponseWriter, r *http.Request, submit bool) {
	var (
		data      []byte
		name      string
		groupName string
		payer     string
		secondary string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body parseRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if body.Path == "" {
			respondWithError(w, http.StatusBadRequest, "'path' is required")
			return
		}
		read, err := os.ReadFile(body.Path)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s", body.Path))
			return
		}
		data, name = read, body.Path
		groupName, payer, secondary = body.Group, body.Payer, body.SecondaryAmount
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondWithError(w, http.StatusBadRequest, "expected a multipart form with a 'file' part")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "missing 'file' part")
			return
		}
		defer file.Close()

		data, err = io.ReadAll(file)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		name = header.Filename
		groupName = r.FormValue("group")
		payer = r.FormValue("payer")
		secondary = r.FormValue("secondary_amount")
	}

	groupName = strings.TrimSpace(groupName)
	payer = strings.TrimSpace(payer)
	if groupName == "" || payer == "" {
		respondWithError(w, http.StatusBadRequest, "both 'group' and 'payer' are required")
		return
	}

	group, err := s.ledger.FindGroup(r.Context(), groupName)
	if err != nil {
		s.respondWithProcessingError(w, err)
		return
	}

	req := pipeline.Request{
		PDF:       data,
		Name:      name,
		Group:     group,
		PayerName: payer,
		Submit:    submit,
	}

	if raw := strings.TrimSpace(secondary); raw != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "secondary_amount is not a valid amount")
			return
		}
		req.SecondaryAmount = &amount
	}

	outcome, err := s.runner.Process(r.Context(), req)
	if err != nil {
		s.respondWithProcessingError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toParseResponse(outcome))
}

// registerItemRequest registers one already-computed item as a single ledger
// expense, bypassing extraction and matching.
type registerItemRequest struct {
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	Date              string `json:"date"`
	Group             string `json:"group"`
	Payer             string `json:"payer"`
	OwedPercentage    string `json:"owed_percentage"`
	SecondaryPctOfOne string `json:"secondary_contribution_pct"`
}

func (s *Server) registerItem(w http.ResponseWriter, r *http.Request) {
	var body registerItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Description == "" || body.Amount == "" || body.Group == "" || body.Payer == "" {
		respondWithError(w, http.StatusBadRequest, "'description', 'amount', 'group' and 'payer' are required")
		return
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(body.Amount, ",", "."))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "'amount' is not a valid amount")
		return
	}

	group, err := s.ledger.FindGroup(r.Context(), body.Group)
	if err != nil {
		s.respondWithProcessingError(w, err)
		return
	}

	policy := models.AllocationPolicy{
		PayerName:           body.Payer,
		DistinguishedMember: s.distinguished,
		SecondaryMember:     s.secondary,
	}
	if body.OwedPercentage != "" {
		pct, err := decimal.NewFromString(body.OwedPercentage)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "'owed_percentage' is not a valid number")
			return
		}
		policy.OwedPercentage = &pct
	}
	if body.SecondaryPctOfOne != "" {
		pct, err := decimal.NewFromString(body.SecondaryPctOfOne)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "'secondary_contribution_pct' is not a valid number")
			return
		}
		policy.SecondaryContributionPct = pct
	}

	item := models.CleanedItem{Description: body.Description, AdjustedAmount: amount, Date: body.Date}
	entries, err := allocate.Allocate([]models.CleanedItem{item}, policy, group)
	if err != nil {
		s.respondWithProcessingError(w, err)
		return
	}

	if err := s.ledger.CreateExpense(r.Context(), entries[0]); err != nil {
		s.respondWithProcessingError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"entry_id": entries[0].ID,
		"cost":     entries[0].Cost.StringFixed(2),
	})
}

// respondWithProcessingError maps domain errors to client-facing statuses;
// anything unrecognized stays a 500 with a generic message.
func (s *Server) respondWithProcessingError(w http.ResponseWriter, err error) {
	var invalidMember *models.InvalidMemberError
	var malformed *models.MalformedInputError
	var extraction *models.ExtractionError
	var submission *models.LedgerSubmissionError

	switch {
	case errors.As(err, &invalidMember):
		respondWithError(w, http.StatusBadRequest, invalidMember.Error())
	case errors.As(err, &malformed):
		respondWithError(w, http.StatusBadRequest, malformed.Error())
	case errors.As(err, &extraction):
		respondWithError(w, http.StatusUnprocessableEntity, "could not extract line items from the document")
	case errors.As(err, &submission):
		respondWithError(w, http.StatusBadGateway, submission.Error())
	default:
		s.log.WithError(err).Error("request processing failed")
		respondWithError(w, http.StatusInternalServerError, "processing failed")
	}
}

func toParseResponse(outcome *pipeline.Outcome) parseResponse {
	resp := parseResponse{
		Date:             outcome.Date,
		Total:            outcome.Total.StringFixed(2),
		FromCache:        outcome.FromCache,
		SubmittedEntries: outcome.SubmittedEntries,
		Buckets:          []bucketResponse{},
	}
	if outcome.Mismatch != nil {
		resp.Mismatch = &mismatchResponse{
			PrintedTotal: outcome.Mismatch.PrintedTotal,
			ComputedSum:  outcome.Mismatch.ComputedSum,
		}
	}
	for _, bucket := range outcome.Buckets {
		br := bucketResponse{
			Name:  bucket.Name,
			Group: bucket.Group,
			Total: bucket.Total.StringFixed(2),
			Items: []itemResponse{},
		}
		for _, item := range bucket.Items {
			br.Items = append(br.Items, itemResponse{
				Description: item.Description,
				Amount:      item.AdjustedAmount.StringFixed(2),
				Date:        item.Date,
			})
		}
		resp.Buckets = append(resp.Buckets, br)
	}
	for _, err := range outcome.SubmissionErrors {
		resp.SubmissionErrors = append(resp.SubmissionErrors, err.Error())
	}
	return resp
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Run serves until the context is cancelled.
func Run(ctx context.Context, addr string, s *Server, logger logging.Logger) error {
	if logger == nil {
		logger = logging.GetLogger()
	}
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logging.Field{Key: "addr", Value: addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
