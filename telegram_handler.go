package main

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	// messageLimit stays below the 4096 character limit of a Telegram message.
	messageLimit    = 4000
	downloadTimeout = time.Minute
)

const welcomeText = `Hi! 👋

Send me a performance table (CSV, TSV, or a .gz/.zip/.lz4 archive of one) with
pitch, pitch-class, duration, fingering, string and fret columns and I will
compute the entropy of every column and its scores.

Commands:
/list - stored results
/delete <id> - delete a result
/chart <id> - entropy and score chart of a result
/summary - score statistics over all results
/start - this help`

var botCmd = &cli.Command{
	Name:   "bot",
	Usage:  "Run the Telegram bot",
	Action: cmdBot,
}

// botAPI is the part of the Telegram client the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type botHandler struct {
	api       botAPI
	store     store.Store
	analyzer  *analysis.Analyzer
	client    *http.Client
	maxUpload int64
}

func cmdBot(c *cli.Context) error {
	cfg := getConfig(c)
	if cfg.Config.TgToken == "" {
		return errors.New("TG_TOKEN is not set")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Config.TgToken)
	if err != nil {
		return errors.Wrap(err, "connecting to telegram")
	}
	log.WithField("account", bot.Self.UserName).Info("bot authorized")

	h := &botHandler{
		api:       bot,
		store:     cfg.Store,
		analyzer:  cfg.Analyzer,
		client:    &http.Client{Timeout: downloadTimeout},
		maxUpload: cfg.Config.MaxUploadMB << 20,
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := bot.GetUpdatesChan(u)
	if err != nil {
		return errors.Wrap(err, "subscribing to updates")
	}

	for {
		select {
		case <-c.Context.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go h.handleMessage(c.Context, update.Message)
		}
	}
}

func (h *botHandler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	switch {
	case message.Document != nil:
		h.handleDocument(ctx, message)
	case message.IsCommand():
		h.handleCommand(ctx, message)
	default:
		h.reply(message.Chat.ID, welcomeText)
	}
}

func (h *botHandler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	arg := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start", "help":
		h.reply(chatID, welcomeText)

	case "list":
		records, err := h.store.ListAll(ctx)
		if err != nil {
			h.replyError(chatID, storeError(err))
			return
		}
		h.replyPre(chatID, GenerateRecordsTable(records))

	case "delete":
		if arg == "" {
			h.reply(chatID, "Usage: /delete <id>")
			return
		}
		deleted, err := h.store.Delete(ctx, arg)
		if err != nil {
			h.replyError(chatID, storeError(err))
			return
		}
		if !deleted {
			h.reply(chatID, fmt.Sprintf("No result with id %s", arg))
			return
		}
		h.reply(chatID, fmt.Sprintf("Deleted %s", arg))

	case "chart":
		if arg == "" {
			h.reply(chatID, "Usage: /chart <id>")
			return
		}
		h.handleChart(ctx, chatID, arg)

	case "summary":
		records, err := h.store.ListAll(ctx)
		if err != nil {
			h.replyError(chatID, storeError(err))
			return
		}
		h.replyPre(chatID, GenerateSummaryTable(analysis.Summarize(records)))

	default:
		h.reply(chatID, "Unknown command. Use /start to see what I can do.")
	}
}

func (h *botHandler) handleDocument(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	doc := message.Document
	logger := log.WithFields(log.Fields{"chat": chatID, "file": doc.FileName})

	if h.maxUpload > 0 && int64(doc.FileSize) > h.maxUpload {
		h.reply(chatID, fmt.Sprintf("%s is too big, the limit is %d MB", doc.FileName, h.maxUpload>>20))
		return
	}

	fileURL, err := h.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		logger.WithError(err).Error("error getting file url")
		h.reply(chatID, "Cannot download the file, try again later")
		return
	}

	body, err := h.download(ctx, fileURL)
	if errors.Is(err, errTooBig) {
		h.reply(chatID, fmt.Sprintf("%s is too big, the limit is %d MB", doc.FileName, h.maxUpload>>20))
		return
	}
	if err != nil {
		logger.WithError(err).Error("error downloading file")
		h.reply(chatID, "Cannot download the file, try again later")
		return
	}

	res, err := h.analyzer.Analyze(ctx, doc.FileName, bytes.NewReader(body))
	if err != nil {
		logger.WithError(err).Warn("analysis failed")
		h.replyError(chatID, storeError(err))
		return
	}

	var text strings.Builder
	text.WriteString(GenerateResultTable(res.Record))
	fmt.Fprintf(&text, "\nid: %s", res.Record.ID)
	for _, w := range res.Warnings {
		fmt.Fprintf(&text, "\nwarning: %s", w)
	}
	h.replyPre(chatID, text.String())
}

var errTooBig = errors.New("file is too big")

// download fetches the whole file. Telegram may report no size for a
// document, so the limit is enforced on the body as well.
func (h *botHandler) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if h.maxUpload > 0 {
		body = io.LimitReader(resp.Body, h.maxUpload+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if h.maxUpload > 0 && int64(len(b)) > h.maxUpload {
		return nil, errTooBig
	}
	return b, nil
}

func (h *botHandler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithError(err).WithField("chat", chatID).Error("error sending message")
	}
}

func (h *botHandler) replyError(chatID int64, err error) {
	h.reply(chatID, "❌ "+err.Error())
}

// replyPre sends preformatted text, split across messages when it is too long.
func (h *botHandler) replyPre(chatID int64, text string) {
	for _, chunk := range splitMessage(text, messageLimit) {
		msg := tgbotapi.NewMessage(chatID, "<pre>\n"+html.EscapeString(chunk)+"\n</pre>")
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := h.api.Send(msg); err != nil {
			log.WithError(err).WithField("chat", chatID).Error("error sending message")
		}
	}
}

// splitMessage cuts text at line boundaries into chunks of at most limit bytes.
// A single line longer than limit is cut as is.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
