package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"linkboard/internal/config"
	"linkboard/internal/domain"
	"linkboard/internal/links"
	"linkboard/internal/page"
	"linkboard/internal/render"
)

// maxListedLinks caps how many links a list reply shows.
const maxListedLinks = 10

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot *tgbot.Bot
	cfg config.Config
	svc *links.Service
	log logrus.FieldLogger

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

// chatSession is the per-chat page state. Each chat gets its own form and
// filters.
type chatSession struct {
	sess *links.Session
	doc  *page.Memory
	// ops serializes form writes and operations within one chat.
	ops sync.Mutex
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.Config, svc *links.Service, logger logrus.FieldLogger) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	b, err := tgbot.New(cfg.TelegramBotToken)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	h := &Handler{
		bot:      b,
		cfg:      cfg,
		svc:      svc,
		log:      log,
		sessions: make(map[int64]*chatSession),
	}
	h.registerHandlers()

	log.Info("Telegram bot handler initialized")
	return h, nil
}

func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/refresh", tgbot.MatchTypePrefix, h.refreshHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/add", tgbot.MatchTypePrefix, h.addHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/debug", tgbot.MatchTypePrefix, h.debugHandler)
	h.log.Info("Registered /start, /refresh, /add and /debug handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

// session returns the chat's session, creating it on first use.
func (h *Handler) session(chatID int64) *chatSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cs, ok := h.sessions[chatID]; ok {
		return cs
	}
	doc := page.NewMemory()
	out := &chatOutput{bot: h.bot, chatID: chatID, doc: doc}
	sess := links.NewSession(doc, out, out)
	sess.ManagementSiteID = h.cfg.ManagementSiteID
	sess.CurrentPlatform = h.cfg.CurrentPlatform
	sess.CurrentUser = h.cfg.CurrentUser

	cs := &chatSession{sess: sess, doc: doc}
	h.sessions[chatID] = cs
	return cs
}

func (h *Handler) reply(ctx context.Context, log logrus.FieldLogger, chatID int64, text string) {
	_, err := h.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Error("Failed to send message")
	}
}

func (h *Handler) commandLog(update *models.Update, command string) logrus.FieldLogger {
	return h.log.WithFields(logrus.Fields{
		"chat_id": update.Message.Chat.ID,
		"command": command,
	})
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.commandLog(update, "/start")
	log.Info("Received /start command")
	h.reply(ctx, log, update.Message.Chat.ID,
		"매물 링크 관리 봇입니다.\n/add <url> [메모] - 링크 추가\n/refresh - 목록 새로고침\n/debug - 상태 확인")
}

func (h *Handler) refreshHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.commandLog(update, "/refresh")
	cs := h.session(update.Message.Chat.ID)
	cs.ops.Lock()
	defer cs.ops.Unlock()

	if err := h.svc.ForceRefresh(ctx, cs.sess); err != nil {
		log.WithError(err).Error("Refresh failed")
		h.reply(ctx, log, update.Message.Chat.ID, "목록을 불러오지 못했습니다.")
	}
}

func (h *Handler) addHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.commandLog(update, "/add")
	cmd := ParseAddCommand(update.Message.Text)
	cs := h.session(update.Message.Chat.ID)
	cs.ops.Lock()
	defer cs.ops.Unlock()

	if err := cs.doc.SetValue(ctx, page.LinkURL, cmd.URL); err != nil {
		log.WithError(err).Error("Failed to fill link form")
		return
	}
	if err := cs.doc.SetValue(ctx, page.LinkMemo, cmd.Memo); err != nil {
		log.WithError(err).Error("Failed to fill link form")
		return
	}
	if err := cs.doc.SetChecked(ctx, page.GuaranteeInsurance, cmd.Insured); err != nil {
		log.WithError(err).Error("Failed to fill link form")
		return
	}

	res, err := h.svc.AddLink(ctx, cs.sess)
	if err != nil {
		// The service already alerted the chat.
		log.WithError(err).Warn("Add link failed")
		return
	}
	h.reply(ctx, log, update.Message.Chat.ID, fmt.Sprintf("링크가 추가되었습니다 (ID %d). 잠시 후 목록을 새로고침합니다.", res.ID))
}

func (h *Handler) debugHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	log := h.commandLog(update, "/debug")
	cs := h.session(update.Message.Chat.ID)

	report, err := h.svc.DebugStatus(ctx, cs.sess)
	if err != nil {
		log.WithError(err).Error("Debug status failed")
	}
	h.reply(ctx, log, update.Message.Chat.ID, render.FormatDebugReport(report))
}

// AddCommand is a parsed "/add <url> [memo...]" message. A "+보증" or
// "+insurance" token anywhere after the URL marks guarantee insurance.
type AddCommand struct {
	URL     string
	Memo    string
	Insured bool
}

func ParseAddCommand(text string) AddCommand {
	fields := strings.Fields(text)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/add") {
		fields = fields[1:]
	}
	var cmd AddCommand
	if len(fields) == 0 {
		return cmd
	}
	cmd.URL = fields[0]

	memo := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		switch f {
		case "+보증", "+insurance":
			cmd.Insured = true
		default:
			memo = append(memo, f)
		}
	}
	cmd.Memo = strings.Join(memo, " ")
	return cmd
}

// FormatLinks renders a list for a chat message.
func FormatLinks(list []domain.Link) string {
	if len(list) == 0 {
		return "등록된 링크가 없습니다."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "링크 %d개\n", len(list))
	for i, l := range list {
		if i == maxListedLinks {
			fmt.Fprintf(&sb, "... 외 %d개", len(list)-maxListedLinks)
			break
		}
		fmt.Fprintf(&sb, "%d. [%s] %s", l.Number, l.Platform, l.URL)
		if l.GuaranteeInsurance {
			sb.WriteString(" (보증보험)")
		}
		if l.Memo != "" {
			fmt.Fprintf(&sb, " - %s", l.Memo)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
