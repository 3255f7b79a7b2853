package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/lesson-bot/internal/store"
)

// Bot is the subset of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router wires Telegram updates to handlers and holds per-user flow sessions.
type Router struct {
	bot      Bot
	log      *zap.Logger
	repo     store.Repo
	loc      *time.Location
	sessions *sessionTable
	now      func() time.Time
}

// NewRouter creates a new Telegram router. Day views use loc; sessions idle
// for longer than sessionTTL are dropped.
func NewRouter(bot Bot, log *zap.Logger, repo store.Repo, loc *time.Location, sessionTTL time.Duration) *Router {
	return &Router{
		bot:      bot,
		log:      log,
		repo:     repo,
		loc:      loc,
		sessions: newSessionTable(sessionTTL),
		now:      time.Now,
	}
}

// HandleUpdate routes a single update to appropriate handler. A panic in a
// handler resets the user's session and is answered with an apology.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("update handler panic", zap.Any("panic", rec), zap.Stack("stack"))
			if chatID, userID := updateOrigin(upd); chatID != 0 {
				r.sessions.reset(userID)
				r.sendText(chatID, apologyText)
			}
		}
	}()

	if msg := upd.Message; msg != nil {
		r.handleMessage(ctx, msg)
		return
	}
	if cb := upd.CallbackQuery; cb != nil && cb.Message != nil {
		r.handleCallback(ctx, cb)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := senderID(msg.From, chatID)

	if !msg.IsCommand() {
		r.handleText(ctx, chatID, userID, strings.TrimSpace(msg.Text))
		return
	}

	cmd := msg.Command()
	r.log.Debug("command", zap.String("cmd", cmd), zap.Int64("user", userID))
	// A new command abandons any flow in progress.
	if cmd != "cancel" {
		r.sessions.reset(userID)
	}

	switch cmd {
	case "start":
		r.handleStart(ctx, chatID, userID)
	case "help":
		r.sendHTML(chatID, helpText, nil)
	case "schedule":
		r.handleSchedule(ctx, chatID, userID)
	case "lessons_today":
		r.handleDay(ctx, chatID, userID, false)
	case "lessons_tomorrow":
		r.handleDay(ctx, chatID, userID, true)
	case "add_lesson":
		r.startAdd(chatID, userID)
	case "remove_lesson":
		r.startRemove(ctx, chatID, userID)
	case "turn_on_off":
		r.startUpdate(ctx, chatID, userID)
	case "cancel":
		r.handleCancel(chatID, userID)
	default:
		r.sendText(chatID, unknownCmdText)
	}
}

// callbackStates maps a callback data prefix to the only state that accepts it.
var callbackStates = map[string]sessionState{
	cbDay:      stateAwaitDay,
	cbRemind:   stateAwaitReminderChoice,
	cbLead:     stateAwaitLead,
	cbRmDay:    stateAwaitRemoveDay,
	cbRmLesson: stateAwaitRemoveLesson,
	cbUpdate:   stateAwaitUpdateLead,
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	userID := senderID(cb.From, chatID)

	i := strings.IndexByte(cb.Data, ':')
	if i < 0 {
		r.answerCallback(cb.ID, "")
		return
	}
	prefix, val := cb.Data[:i+1], cb.Data[i+1:]
	want, ok := callbackStates[prefix]
	if !ok {
		r.answerCallback(cb.ID, "")
		return
	}

	s := r.sessions.get(userID)
	if s.State != want {
		r.answerCallback(cb.ID, expiredText)
		return
	}
	r.answerCallback(cb.ID, "")

	m := messageRef{chatID: chatID, messageID: cb.Message.MessageID}
	switch prefix {
	case cbDay:
		r.onAddDay(m, userID, s, val)
	case cbRemind:
		r.onReminderChoice(ctx, m, userID, s, val)
	case cbLead:
		r.onAddLead(ctx, m, userID, s, val)
	case cbRmDay:
		r.onRemoveDay(m, userID, s, val)
	case cbRmLesson:
		r.onRemoveLesson(ctx, m, userID, s, val)
	case cbUpdate:
		r.onUpdateLead(ctx, m, userID, s, val)
	}
}

// SendMessage sends a plain text message to the given chat, giving up when
// ctx is done. This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(ctx context.Context, chatID int64, text string) error {
	done := make(chan error, 1)
	go func() {
		_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterCommands publishes the command menu via setMyCommands.
func (r *Router) RegisterCommands() error {
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(botCommands...))
	return err
}

// messageRef points at a bot message that a callback came from.
type messageRef struct {
	chatID    int64
	messageID int
}

// senderID falls back to the chat id for updates without a sender.
func senderID(u *tgbotapi.User, chatID int64) int64 {
	if u == nil {
		return chatID
	}
	return u.ID
}

func updateOrigin(upd tgbotapi.Update) (chatID, userID int64) {
	switch {
	case upd.Message != nil:
		chatID = upd.Message.Chat.ID
		return chatID, senderID(upd.Message.From, chatID)
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		chatID = upd.CallbackQuery.Message.Chat.ID
		return chatID, senderID(upd.CallbackQuery.From, chatID)
	}
	return 0, 0
}

// userKey is the store key for a Telegram user.
func userKey(userID int64) string { return strconv.FormatInt(userID, 10) }
