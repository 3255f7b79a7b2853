package telegram

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/ykvlv/lesson-bot/internal/domain"
	"github.com/ykvlv/lesson-bot/internal/store"
	"github.com/ykvlv/lesson-bot/mocks"
)

const uid int64 = 1658352530

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	block    chan struct{}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// last returns the text and keyboard of the most recent message or edit.
func (b *fakeBot) last(t *testing.T) (string, *tgbotapi.InlineKeyboardMarkup) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.sent)
	switch c := b.sent[len(b.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		if kb, ok := c.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			return c.Text, &kb
		}
		return c.Text, nil
	case tgbotapi.EditMessageTextConfig:
		return c.Text, c.ReplyMarkup
	default:
		t.Fatalf("unexpected chattable %T", c)
		return "", nil
	}
}

func (b *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	text, _ := b.last(t)
	return text
}

func (b *fakeBot) lastCallbackAnswer(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if cb, ok := b.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb.Text
		}
	}
	t.Fatal("no callback answered")
	return ""
}

func newJSONStore(t *testing.T, templateUser string) *store.LessonStore {
	t.Helper()
	b, err := store.OpenJSON(filepath.Join(t.TempDir(), "lessons_data.json"))
	require.NoError(t, err)
	s := store.NewLessonStore(b, zap.NewNop(), templateUser)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRouter(repo store.Repo) (*Router, *fakeBot) {
	bot := &fakeBot{}
	return NewRouter(bot, zap.NewNop(), repo, domain.DefaultLocation, 15*time.Minute), bot
}

func command(userID int64, cmd string) tgbotapi.Update {
	text := "/" + cmd
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func text(userID int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: s,
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}}
}

func callbackData(kb *tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

func TestAddLessonFlow(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	r, bot := newRouter(repo)

	r.HandleUpdate(ctx, command(uid, "add_lesson"))
	assert.Equal(t, askCourseText, bot.lastText(t))

	r.HandleUpdate(ctx, text(uid, "   "))
	assert.Equal(t, emptyCourseText, bot.lastText(t))

	r.HandleUpdate(ctx, text(uid, "Calculus 2"))
	_, kb := bot.last(t)
	require.NotNil(t, kb)
	assert.Contains(t, callbackData(kb), "day:monday")

	r.HandleUpdate(ctx, callback(uid, "day:monday"))
	assert.Contains(t, bot.lastText(t), "Monday")

	// invalid time keeps the flow
	r.HandleUpdate(ctx, text(uid, "9:30"))
	assert.Equal(t, badTimeText, bot.lastText(t))
	assert.Equal(t, stateAwaitTime, r.sessions.get(uid).State)

	r.HandleUpdate(ctx, text(uid, "09:30"))
	_, kb = bot.last(t)
	require.NotNil(t, kb)
	assert.Equal(t, []string{"remind:yes", "remind:no"}, callbackData(kb))

	r.HandleUpdate(ctx, callback(uid, "remind:yes"))
	_, kb = bot.last(t)
	require.NotNil(t, kb)
	assert.Equal(t, []string{"lead:5", "lead:15", "lead:30", "lead:60"}, callbackData(kb))

	r.HandleUpdate(ctx, callback(uid, "lead:15"))
	assert.Contains(t, bot.lastText(t), "Lesson added successfully")
	assert.Equal(t, stateIdle, r.sessions.get(uid).State)

	lessons, err := repo.ListForUser(ctx, "1658352530")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, domain.Monday, lessons[0].Day)
	assert.Equal(t, "09:30", lessons[0].Time)
	assert.Equal(t, "Calculus 2", lessons[0].Subject)
	assert.Equal(t, domain.Reminder15Min, lessons[0].Reminder)
}

func TestAddLessonWithoutReminder(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	r, _ := newRouter(repo)

	r.HandleUpdate(ctx, command(uid, "add_lesson"))
	r.HandleUpdate(ctx, text(uid, "Physics <lab>"))
	r.HandleUpdate(ctx, callback(uid, "day:friday"))
	r.HandleUpdate(ctx, text(uid, "16:00"))
	r.HandleUpdate(ctx, callback(uid, "remind:no"))

	lessons, err := repo.ListForUser(ctx, "1658352530")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Physics <lab>", lessons[0].Subject)
	assert.Equal(t, domain.ReminderNone, lessons[0].Reminder)
}

func TestButtonsExpectedWhileWaitingForChoice(t *testing.T) {
	ctx := context.Background()
	r, bot := newRouter(newJSONStore(t, ""))

	r.HandleUpdate(ctx, command(uid, "add_lesson"))
	r.HandleUpdate(ctx, text(uid, "History"))
	r.HandleUpdate(ctx, text(uid, "monday"))

	assert.Equal(t, useButtonsText, bot.lastText(t))
	assert.Equal(t, stateAwaitDay, r.sessions.get(uid).State)
}

func TestRemoveLessonFlow(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	user := "1658352530"
	_, err := repo.Add(ctx, user, domain.Monday, "14:00", "Physics", domain.Reminder5Min)
	require.NoError(t, err)
	_, err = repo.Add(ctx, user, domain.Monday, "09:00", "Calculus 2", domain.Reminder15Min)
	require.NoError(t, err)
	r, bot := newRouter(repo)

	r.HandleUpdate(ctx, command(uid, "remove_lesson"))
	assert.Equal(t, removeHeaderText, bot.lastText(t))

	// a day without lessons re-prompts
	r.HandleUpdate(ctx, callback(uid, "rmday:tuesday"))
	assert.Contains(t, bot.lastText(t), "No lessons on <b>Tuesday</b>")
	assert.Equal(t, stateAwaitRemoveDay, r.sessions.get(uid).State)

	r.HandleUpdate(ctx, callback(uid, "rmday:monday"))
	_, kb := bot.last(t)
	require.NotNil(t, kb)
	assert.Equal(t, []string{"rmlesson:0", "rmlesson:1", "rmlesson:back", "rmlesson:cancel"}, callbackData(kb))

	// choices are sorted by time, so 0 is the 09:00 lesson
	r.HandleUpdate(ctx, callback(uid, "rmlesson:0"))
	assert.Contains(t, bot.lastText(t), "Lesson removed successfully")

	lessons, err := repo.ListForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Physics", lessons[0].Subject)
}

func TestRemoveLessonBackAndCancel(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	_, err := repo.Add(ctx, "1658352530", domain.Wednesday, "10:00", "Art", domain.ReminderNone)
	require.NoError(t, err)
	r, bot := newRouter(repo)

	r.HandleUpdate(ctx, command(uid, "remove_lesson"))
	r.HandleUpdate(ctx, callback(uid, "rmday:wednesday"))
	r.HandleUpdate(ctx, callback(uid, "rmlesson:back"))
	assert.Equal(t, removeHeaderText, bot.lastText(t))
	assert.Equal(t, stateAwaitRemoveDay, r.sessions.get(uid).State)

	r.HandleUpdate(ctx, callback(uid, "rmday:cancel"))
	assert.Equal(t, cancelledText, bot.lastText(t))
	assert.Equal(t, stateIdle, r.sessions.get(uid).State)

	lessons, err := repo.ListForUser(ctx, "1658352530")
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
}

func TestRemoveWithNoLessons(t *testing.T) {
	r, bot := newRouter(newJSONStore(t, ""))
	r.HandleUpdate(context.Background(), command(uid, "remove_lesson"))
	assert.Equal(t, nothingRemoveText, bot.lastText(t))
	assert.Equal(t, stateIdle, r.sessions.get(uid).State)
}

func TestTurnOnOffFlow(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	user := "1658352530"
	_, err := repo.Add(ctx, user, domain.Monday, "14:00", "Calculus 2", domain.Reminder15Min)
	require.NoError(t, err)
	r, bot := newRouter(repo)

	r.HandleUpdate(ctx, command(uid, "turn_on_off"))
	prompt := bot.lastText(t)
	assert.Contains(t, prompt, updatePromptText)
	assert.Contains(t, prompt, "<code>Monday, 14:00, Calculus 2</code>")

	cases := []struct {
		input string
		want  string
	}{
		{input: "Monday 14:00 Calculus 2", want: badRefText},
		{input: "Mon, 14:00, Calculus 2", want: badDayText},
		{input: "Monday, 2pm, Calculus 2", want: badRefTimeText},
	}
	for _, tc := range cases {
		r.HandleUpdate(ctx, text(uid, tc.input))
		assert.Equal(t, tc.want, bot.lastText(t), tc.input)
		assert.Equal(t, stateAwaitUpdateLesson, r.sessions.get(uid).State)
	}

	r.HandleUpdate(ctx, text(uid, "Tuesday, 14:00, Calculus 2"))
	assert.Contains(t, bot.lastText(t), "Lesson not found")

	r.HandleUpdate(ctx, text(uid, "monday, 14:00, calculus 2"))
	_, kb := bot.last(t)
	require.NotNil(t, kb)
	assert.Equal(t, []string{"upd:5", "upd:15", "upd:30", "upd:60", "upd:none"}, callbackData(kb))

	r.HandleUpdate(ctx, callback(uid, "upd:none"))
	assert.Contains(t, bot.lastText(t), "Reminder turned off")

	lessons, err := repo.ListForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, domain.ReminderNone, lessons[0].Reminder)

	r.HandleUpdate(ctx, command(uid, "turn_on_off"))
	r.HandleUpdate(ctx, text(uid, "Monday, 14:00, Calculus 2"))
	r.HandleUpdate(ctx, callback(uid, "upd:60"))
	lessons, err = repo.ListForUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.Reminder1Hour, lessons[0].Reminder)
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	r, bot := newRouter(newJSONStore(t, ""))
	now := time.Date(2025, time.May, 5, 10, 0, 0, 0, domain.DefaultLocation)
	r.sessions.now = func() time.Time { return now }

	r.HandleUpdate(ctx, command(uid, "add_lesson"))
	assert.Equal(t, stateAwaitCourseName, r.sessions.get(uid).State)

	now = now.Add(16 * time.Minute)
	r.HandleUpdate(ctx, text(uid, "Calculus 2"))
	assert.Equal(t, unknownTextReply, bot.lastText(t))
	assert.Equal(t, stateIdle, r.sessions.get(uid).State)
}

func TestStaleCallback(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	r, bot := newRouter(repo)

	r.HandleUpdate(ctx, callback(uid, "lead:15"))
	assert.Equal(t, expiredText, bot.lastCallbackAnswer(t))
	assert.Empty(t, bot.sent)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCommandAbandonsFlow(t *testing.T) {
	ctx := context.Background()
	r, bot := newRouter(newJSONStore(t, ""))

	r.HandleUpdate(ctx, command(uid, "add_lesson"))
	r.HandleUpdate(ctx, command(uid, "help"))
	assert.Equal(t, helpText, bot.lastText(t))
	assert.Equal(t, stateIdle, r.sessions.get(uid).State)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	r, bot := newRouter(newJSONStore(t, ""))

	r.HandleUpdate(ctx, command(uid, "cancel"))
	assert.Equal(t, nothingToCancel, bot.lastText(t))

	r.HandleUpdate(ctx, command(uid, "add_lesson"))
	r.HandleUpdate(ctx, command(uid, "cancel"))
	assert.Equal(t, cancelledText, bot.lastText(t))
	assert.Equal(t, stateIdle, r.sessions.get(uid).State)
}

func TestUnknownInput(t *testing.T) {
	ctx := context.Background()
	r, bot := newRouter(newJSONStore(t, ""))

	r.HandleUpdate(ctx, command(uid, "lessons"))
	assert.Equal(t, unknownCmdText, bot.lastText(t))

	r.HandleUpdate(ctx, text(uid, "hello"))
	assert.Equal(t, unknownTextReply, bot.lastText(t))
}

func TestScheduleSeedsFromTemplate(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "100")
	_, err := repo.Add(ctx, "100", domain.Tuesday, "11:00", "Linear Algebra", domain.Reminder30Min)
	require.NoError(t, err)
	r, bot := newRouter(repo)

	r.HandleUpdate(ctx, command(uid, "schedule"))
	got := bot.lastText(t)
	assert.Contains(t, got, "Your Weekly Schedule")
	assert.Contains(t, got, "Linear Algebra")

	lessons, err := repo.ListForUser(ctx, "1658352530")
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
}

func TestScheduleEmpty(t *testing.T) {
	r, bot := newRouter(newJSONStore(t, ""))
	r.HandleUpdate(context.Background(), command(uid, "schedule"))
	assert.Equal(t, noLessonsText, bot.lastText(t))
}

func TestTodayAndTomorrow(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	user := "1658352530"
	_, err := repo.Add(ctx, user, domain.Monday, "09:00", "Calculus 2", domain.Reminder15Min)
	require.NoError(t, err)
	_, err = repo.Add(ctx, user, domain.Tuesday, "10:00", "History", domain.ReminderNone)
	require.NoError(t, err)
	r, bot := newRouter(repo)
	// Monday 23:30 in UTC+6 is still Monday 17:30 UTC.
	r.now = func() time.Time { return time.Date(2025, time.May, 5, 17, 30, 0, 0, time.UTC) }

	r.HandleUpdate(ctx, command(uid, "lessons_today"))
	today := bot.lastText(t)
	assert.Contains(t, today, "Calculus 2")
	assert.NotContains(t, today, "History")

	r.HandleUpdate(ctx, command(uid, "lessons_tomorrow"))
	tomorrow := bot.lastText(t)
	assert.Contains(t, tomorrow, "History")
	assert.Contains(t, tomorrow, "Tuesday, May 06, 2025")
}

func TestDayViewsWithoutLessons(t *testing.T) {
	ctx := context.Background()
	r, bot := newRouter(newJSONStore(t, ""))

	r.HandleUpdate(ctx, command(uid, "lessons_today"))
	assert.Equal(t, noLessonsText, bot.lastText(t))

	r.HandleUpdate(ctx, command(uid, "lessons_tomorrow"))
	assert.Equal(t, noLessonsText, bot.lastText(t))
}

func TestDayViewWithoutLessonsThatDay(t *testing.T) {
	ctx := context.Background()
	repo := newJSONStore(t, "")
	_, err := repo.Add(ctx, "1658352530", domain.Friday, "09:00", "Chem", domain.ReminderNone)
	require.NoError(t, err)
	r, bot := newRouter(repo)
	r.now = func() time.Time { return time.Date(2025, time.May, 5, 12, 0, 0, 0, domain.DefaultLocation) }

	r.HandleUpdate(ctx, command(uid, "lessons_today"))
	assert.Contains(t, bot.lastText(t), "No lessons scheduled for today")
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepo(ctrl)
	repo.EXPECT().
		ListForUser(gomock.Any(), "1658352530").
		DoAndReturn(func(context.Context, string) ([]domain.Lesson, error) { panic("boom") })
	r, bot := newRouter(repo)

	require.NotPanics(t, func() { r.HandleUpdate(context.Background(), command(uid, "schedule")) })
	assert.Equal(t, apologyText, bot.lastText(t))
}

func TestSendMessageHonoursContext(t *testing.T) {
	bot := &fakeBot{block: make(chan struct{})}
	r := NewRouter(bot, zap.NewNop(), nil, domain.DefaultLocation, time.Minute)
	defer close(bot.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.SendMessage(ctx, uid, "⏰ Reminder")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendMessage(t *testing.T) {
	r, bot := newRouter(nil)
	require.NoError(t, r.SendMessage(context.Background(), uid, "hi"))

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, uid, msg.ChatID)
	assert.Equal(t, "hi", msg.Text)
	assert.Empty(t, msg.ParseMode)
}

func TestRegisterCommands(t *testing.T) {
	r, bot := newRouter(nil)
	require.NoError(t, r.RegisterCommands())

	require.Len(t, bot.requests, 1)
	cfg, ok := bot.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	assert.Len(t, cfg.Commands, len(botCommands))
}
