// Package bot is the Telegram front end: it runs the intake conversation
// that collects the ledger group, the payer, and the secondary member's
// contribution, then hands uploaded receipt documents to the processing
// pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"kassabot/internal/ledger"
	"kassabot/internal/logging"
	"kassabot/internal/models"
	"kassabot/internal/pipeline"
	"kassabot/internal/session"
	"kassabot/internal/textmatch"
)

// resetKeyword restarts the conversation from the group question.
const resetKeyword = "reset"

// memberMatchThreshold is the minimum similarity for a typed name to resolve
// to a group member or a group.
const memberMatchThreshold = 0.8

// API is the slice of the Telegram client the handler needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Runner runs the receipt pipeline; satisfied by pipeline.Processor.
type Runner interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// Handler drives the per-chat conversation state machine.
type Handler struct {
	api      API
	runner   Runner
	ledger   ledger.Client
	sessions *session.Store
	// downloader fetches document bytes from the URL Telegram hands out.
	downloader *http.Client
	secondary  string
	log        logging.Logger
}

// NewHandler wires the conversation handler. secondaryMember is the member
// whose contribution is asked for when somebody else paid.
func NewHandler(api API, runner Runner, client ledger.Client, sessions *session.Store,
	secondaryMember string, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Handler{
		api:        api,
		runner:     runner,
		ledger:     client,
		sessions:   sessions,
		downloader: http.DefaultClient,
		secondary:  secondaryMember,
		log:        logger,
	}
}

// HandleUpdate processes one incoming Telegram update. Errors are reported to
// the chat; the returned error is for the caller's logs only.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}
	msg := update.Message
	chatID := msg.Chat.ID

	text := strings.TrimSpace(msg.Text)
	if strings.EqualFold(text, resetKeyword) || text == "/start" {
		h.sessions.Reset(chatID)
		return h.askForGroup(ctx, chatID)
	}

	sess := h.sessions.Get(chatID)
	h.log.Debug("handling update",
		logging.Field{Key: logging.FieldChatID, Value: chatID},
		logging.Field{Key: logging.FieldOperation, Value: sess.State.String()})

	switch sess.State {
	case session.StateWaitForGroup:
		return h.handleGroupChoice(ctx, sess, text)
	case session.StateWaitForPayer:
		return h.handlePayerChoice(sess, text)
	case session.StateWaitForSecondaryAmount:
		return h.handleSecondaryAmount(sess, text)
	case session.StateWaitForPDF:
		return h.handleDocument(ctx, sess, msg)
	default:
		h.sessions.Reset(chatID)
		return h.askForGroup(ctx, chatID)
	}
}

func (h *Handler) askForGroup(ctx context.Context, chatID int64) error {
	groups, err := h.ledger.ListGroups(ctx)
	if err != nil {
		h.reply(chatID, "I could not fetch your groups, please try again later.")
		return err
	}

	var b strings.Builder
	b.WriteString("Which group should the expenses go to?\n")
	for i, group := range groups {
		fmt.Fprintf(&b, "%d. %s\n", i+1, group.Name)
	}
	b.WriteString("Answer with a number or a name.")
	h.reply(chatID, b.String())
	return nil
}

func (h *Handler) handleGroupChoice(ctx context.Context, sess session.Session, text string) error {
	if text == "" {
		h.reply(sess.ChatID, "Please pick a group first, or upload after choosing one. Send 'reset' to start over.")
		return nil
	}

	groups, err := h.ledger.ListGroups(ctx)
	if err != nil {
		h.reply(sess.ChatID, "I could not fetch your groups, please try again later.")
		return err
	}
	if len(groups) == 0 {
		h.reply(sess.ChatID, "You are not a member of any group.")
		return nil
	}

	group, ok := chooseGroup(groups, text)
	if !ok {
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		h.reply(sess.ChatID, "I do not know that group. Available: "+strings.Join(names, ", "))
		return nil
	}

	sess.Group = group
	sess.State = session.StateWaitForPayer
	h.sessions.Save(sess)

	names := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		names = append(names, m.FirstName)
	}
	h.reply(sess.ChatID, fmt.Sprintf("Using %s. Who paid? (%s)", group.Name, strings.Join(names, ", ")))
	return nil
}

// chooseGroup resolves the user's answer to a group, by list number first and
// fuzzy name match second.
func chooseGroup(groups []models.Group, text string) (models.Group, bool) {
	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(groups) {
			return groups[n-1], true
		}
		return models.Group{}, false
	}

	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	idx, score := textmatch.BestOption(text, names)
	if idx < 0 || score < memberMatchThreshold {
		return models.Group{}, false
	}
	return groups[idx], true
}

func (h *Handler) handlePayerChoice(sess session.Session, text string) error {
	names := make([]string, 0, len(sess.Group.Members))
	for _, m := range sess.Group.Members {
		names = append(names, m.FirstName)
	}

	idx, score := textmatch.BestOption(text, names)
	if idx < 0 || score < memberMatchThreshold {
		h.reply(sess.ChatID, "I do not know that member. Available: "+strings.Join(names, ", "))
		return nil
	}

	sess.PayerName = sess.Group.Members[idx].FirstName

	if strings.EqualFold(sess.PayerName, h.secondary) {
		// The secondary member paid, so their contribution is the whole
		// receipt and there is nothing left to ask.
		sess.SecondaryContributionPct = decimal.NewFromInt(100)
		sess.State = session.StateWaitForPDF
		h.sessions.Save(sess)
		h.reply(sess.ChatID, fmt.Sprintf("%s paid. Send me the receipt PDF.", sess.PayerName))
		return nil
	}

	sess.State = session.StateWaitForSecondaryAmount
	h.sessions.Save(sess)
	h.reply(sess.ChatID, fmt.Sprintf("How much did %s contribute? Send an amount in euro.", h.secondary))
	return nil
}

func (h *Handler) handleSecondaryAmount(sess session.Session, text string) error {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || amount.IsNegative() {
		h.reply(sess.ChatID, "I need a non-negative amount, like 12.50. Try again.")
		return nil
	}

	sess.SecondaryContributionPct = decimal.Zero
	sess.SecondaryAmount = &amount
	sess.State = session.StateWaitForPDF
	h.sessions.Save(sess)
	h.reply(sess.ChatID, "Got it. Send me the receipt PDF.")
	return nil
}

func (h *Handler) handleDocument(ctx context.Context, sess session.Session, msg *tgbotapi.Message) error {
	if msg.Document == nil {
		h.reply(sess.ChatID, "I am waiting for a receipt PDF. Send 'reset' to start over.")
		return nil
	}
	if msg.Document.MimeType != "application/pdf" {
		h.reply(sess.ChatID, "That does not look like a PDF. Please send the receipt as a PDF document.")
		return nil
	}

	data, err := h.download(ctx, msg.Document.FileID)
	if err != nil {
		h.reply(sess.ChatID, "I could not download that document, please send it again.")
		return err
	}

	req := pipeline.Request{
		PDF:                      data,
		Name:                     msg.Document.FileName,
		Group:                    sess.Group,
		PayerName:                sess.PayerName,
		SecondaryAmount:          sess.SecondaryAmount,
		SecondaryContributionPct: sess.SecondaryContributionPct,
		Submit:                   true,
	}

	h.reply(sess.ChatID, "Processing your receipt...")
	outcome, err := h.runner.Process(ctx, req)
	if err != nil {
		h.reply(sess.ChatID, fmt.Sprintf("Processing failed: %v", err))
		var invalid *models.InvalidMemberError
		if errors.As(err, &invalid) {
			// The stored group or payer is unusable, so the conversation
			// starts over from the group question.
			h.sessions.Reset(sess.ChatID)
			if askErr := h.askForGroup(ctx, sess.ChatID); askErr != nil {
				return askErr
			}
		}
		return err
	}

	// The conversation is done; the next message starts a fresh one.
	h.sessions.Reset(sess.ChatID)
	h.reply(sess.ChatID, pipeline.Report(outcome))
	return nil
}

func (h *Handler) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.WithError(err).Error("failed to send chat message",
			logging.Field{Key: logging.FieldChatID, Value: chatID})
	}
}
