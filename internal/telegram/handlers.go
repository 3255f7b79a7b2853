package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/lesson-bot/internal/domain"
	"github.com/ykvlv/lesson-bot/internal/schedule"
)

const (
	useButtonsText  = "👆 Please use the buttons above."
	nothingToCancel = "There is nothing to cancel."
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// sendHTML sends text in HTML parse mode with an optional inline keyboard.
func (r *Router) sendHTML(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// edit replaces the text of the message a callback came from. A nil kb
// drops the inline keyboard.
func (r *Router) edit(m messageRef, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	var cfg tgbotapi.EditMessageTextConfig
	if kb != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(m.chatID, m.messageID, text, *kb)
	} else {
		cfg = tgbotapi.NewEditMessageText(m.chatID, m.messageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.bot.Send(cfg); err != nil {
		r.log.Warn("edit failed", zap.Int64("chat", m.chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		r.log.Debug("answer callback failed", zap.Error(err))
	}
}

func kbPtr(kb tgbotapi.InlineKeyboardMarkup) *tgbotapi.InlineKeyboardMarkup { return &kb }

// ensureSchedule lists the user's lessons, seeding from the template user
// when the list is empty.
func (r *Router) ensureSchedule(ctx context.Context, userID int64) []domain.Lesson {
	user := userKey(userID)
	lessons, err := r.repo.ListForUser(ctx, user)
	if err != nil {
		r.log.Warn("list lessons failed", zap.String("user", user), zap.Error(err))
	}
	if len(lessons) > 0 {
		return lessons
	}
	seeded, err := r.repo.SeedFromTemplate(ctx, user)
	if err != nil {
		r.log.Error("seed from template failed", zap.String("user", user), zap.Error(err))
		return lessons
	}
	if !seeded {
		return lessons
	}
	lessons, err = r.repo.ListForUser(ctx, user)
	if err != nil {
		r.log.Warn("list lessons failed", zap.String("user", user), zap.Error(err))
	}
	return lessons
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID, userID int64) {
	r.ensureSchedule(ctx, userID)
	r.sendHTML(chatID, startText, nil)
	r.sendHTML(chatID, helpText, nil)
}

func (r *Router) handleSchedule(ctx context.Context, chatID, userID int64) {
	lessons := r.ensureSchedule(ctx, userID)
	if len(lessons) == 0 {
		r.sendText(chatID, noLessonsText)
		return
	}
	r.sendHTML(chatID, schedule.RenderWeek(schedule.Week(lessons)), nil)
}

func (r *Router) handleDay(ctx context.Context, chatID, userID int64, tomorrow bool) {
	lessons := r.ensureSchedule(ctx, userID)
	if len(lessons) == 0 {
		r.sendText(chatID, noLessonsText)
		return
	}
	now := r.now().In(r.loc)
	if tomorrow {
		r.sendHTML(chatID, schedule.RenderDay("tomorrow", now.AddDate(0, 0, 1), schedule.Tomorrow(lessons, now)), nil)
		return
	}
	r.sendHTML(chatID, schedule.RenderDay("today", now, schedule.Today(lessons, now)), nil)
}

func (r *Router) handleCancel(chatID, userID int64) {
	if r.sessions.get(userID).State == stateIdle {
		r.sendText(chatID, nothingToCancel)
		return
	}
	r.sessions.reset(userID)
	r.sendText(chatID, cancelledText)
}

// handleText dispatches free-form text by the user's flow state.
func (r *Router) handleText(ctx context.Context, chatID, userID int64, text string) {
	s := r.sessions.get(userID)
	switch s.State {
	case stateIdle:
		r.sendText(chatID, unknownTextReply)
	case stateAwaitCourseName:
		r.onCourseName(chatID, userID, s, text)
	case stateAwaitTime:
		r.onLessonTime(chatID, userID, s, text)
	case stateAwaitUpdateLesson:
		r.onUpdateLesson(ctx, chatID, userID, s, text)
	default:
		// Waiting for a button press.
		r.sendText(chatID, useButtonsText)
	}
}

// --- Add lesson flow ---

func (r *Router) startAdd(chatID, userID int64) {
	r.sessions.set(userID, session{State: stateAwaitCourseName})
	r.sendHTML(chatID, askCourseText, nil)
}

func (r *Router) onCourseName(chatID, userID int64, s session, text string) {
	subject, err := domain.NormalizeSubject(text)
	if err != nil {
		r.sessions.set(userID, s)
		r.sendText(chatID, emptyCourseText)
		return
	}
	s.Draft.Subject = subject
	s.State = stateAwaitDay
	r.sessions.set(userID, s)
	r.sendHTML(chatID,
		fmt.Sprintf("📚 Course: <b>%s</b>\n\n📅 Select the day:", html.EscapeString(subject)),
		kbPtr(dayKeyboard(cbDay, false)))
}

func (r *Router) onAddDay(m messageRef, userID int64, s session, val string) {
	day, err := domain.ParseWeekday(val)
	if err != nil {
		return
	}
	s.Draft.Day = day
	s.State = stateAwaitTime
	r.sessions.set(userID, s)
	r.edit(m, fmt.Sprintf("📚 Course: <b>%s</b>\n📅 Day: <b>%s</b>\n\n🕐 Enter the time (HH:MM):\nExample: <code>14:00</code>",
		html.EscapeString(s.Draft.Subject), day.Title()), nil)
}

func (r *Router) onLessonTime(chatID, userID int64, s session, text string) {
	if err := domain.ValidateTime(text); err != nil {
		r.sessions.set(userID, s)
		r.sendHTML(chatID, badTimeText, nil)
		return
	}
	s.Draft.Time = text
	s.State = stateAwaitReminderChoice
	r.sessions.set(userID, s)
	r.sendHTML(chatID,
		fmt.Sprintf("📚 %s\n📅 %s at %s\n\n🔔 Do you want to set a reminder?",
			html.EscapeString(s.Draft.Subject), s.Draft.Day.Title(), s.Draft.Time),
		kbPtr(reminderChoiceKeyboard()))
}

func (r *Router) onReminderChoice(ctx context.Context, m messageRef, userID int64, s session, val string) {
	switch val {
	case "yes":
		s.State = stateAwaitLead
		r.sessions.set(userID, s)
		r.edit(m, leadPromptText, kbPtr(leadKeyboard(cbLead, false)))
	case "no":
		r.finishAdd(ctx, m, userID, s.Draft, domain.ReminderNone)
	}
}

func (r *Router) onAddLead(ctx context.Context, m messageRef, userID int64, s session, val string) {
	rem, ok := parseLead(val)
	if !ok {
		return
	}
	r.finishAdd(ctx, m, userID, s.Draft, rem)
}

func (r *Router) finishAdd(ctx context.Context, m messageRef, userID int64, d lessonDraft, rem domain.Reminder) {
	r.sessions.reset(userID)
	user := userKey(userID)
	l, err := r.repo.Add(ctx, user, d.Day, d.Time, d.Subject, rem)
	if err != nil {
		r.log.Error("add lesson failed", zap.String("user", user), zap.Error(err))
		r.edit(m, storeErrorText, nil)
		return
	}
	r.log.Info("lesson added",
		zap.String("user", user),
		zap.String("day", l.Day.String()),
		zap.String("time", l.Time),
		zap.String("reminder", l.Reminder.String()),
	)
	r.edit(m, fmt.Sprintf("✅ <b>Lesson added successfully!</b>\n\n📚 Course: %s\n📅 Day: %s\n🕐 Time: %s\n⏰ Reminder: %s",
		html.EscapeString(l.Subject), l.Day.Title(), l.Time, l.Reminder), nil)
}

// --- Remove lesson flow ---

func (r *Router) startRemove(ctx context.Context, chatID, userID int64) {
	lessons, err := r.repo.ListForUser(ctx, userKey(userID))
	if err != nil {
		r.log.Warn("list lessons failed", zap.Int64("user", userID), zap.Error(err))
	}
	if len(lessons) == 0 {
		r.sendText(chatID, nothingRemoveText)
		return
	}
	r.sessions.set(userID, session{State: stateAwaitRemoveDay, AllLessons: lessons})
	r.sendHTML(chatID, removeHeaderText, kbPtr(dayKeyboard(cbRmDay, true)))
}

func (r *Router) onRemoveDay(m messageRef, userID int64, s session, val string) {
	if val == cbCancel {
		r.sessions.reset(userID)
		r.edit(m, cancelledText, nil)
		return
	}
	day, err := domain.ParseWeekday(val)
	if err != nil {
		return
	}
	choices := schedule.ForDay(s.AllLessons, day)
	if len(choices) == 0 {
		r.sessions.set(userID, s)
		r.edit(m, fmt.Sprintf("📭 No lessons on <b>%s</b>!\n\nPlease select another day:", day.Title()),
			kbPtr(dayKeyboard(cbRmDay, true)))
		return
	}
	s.State = stateAwaitRemoveLesson
	s.RemoveDay = day
	s.RemoveChoices = choices
	r.sessions.set(userID, s)
	r.edit(m, fmt.Sprintf("🗑️ <b>%s</b>\n\nSelect the lesson to remove:", day.Title()),
		kbPtr(removeLessonKeyboard(choices)))
}

func (r *Router) onRemoveLesson(ctx context.Context, m messageRef, userID int64, s session, val string) {
	switch val {
	case cbCancel:
		r.sessions.reset(userID)
		r.edit(m, cancelledText, nil)
		return
	case cbBack:
		s.State = stateAwaitRemoveDay
		s.RemoveChoices = nil
		r.sessions.set(userID, s)
		r.edit(m, removeHeaderText, kbPtr(dayKeyboard(cbRmDay, true)))
		return
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 || i >= len(s.RemoveChoices) {
		return
	}
	target := s.RemoveChoices[i]
	r.sessions.reset(userID)

	user := userKey(userID)
	ok, err := r.repo.Remove(ctx, user, target.Day, target.Time, target.Subject)
	switch {
	case err != nil:
		r.log.Error("remove lesson failed", zap.String("user", user), zap.Error(err))
		r.edit(m, storeErrorText, nil)
	case !ok:
		r.edit(m, removeFailedText, nil)
	default:
		r.log.Info("lesson removed", zap.String("user", user), zap.String("day", target.Day.String()), zap.String("time", target.Time))
		r.edit(m, fmt.Sprintf("✅ <b>Lesson removed successfully!</b>\n\n📚 %s\n📅 %s at %s",
			html.EscapeString(target.Subject), target.Day.Title(), target.Time), nil)
	}
}

// --- Turn reminder on/off flow ---

func (r *Router) startUpdate(ctx context.Context, chatID, userID int64) {
	lessons, err := r.repo.ListForUser(ctx, userKey(userID))
	if err != nil {
		r.log.Warn("list lessons failed", zap.Int64("user", userID), zap.Error(err))
	}
	if len(lessons) == 0 {
		r.sendText(chatID, nothingUpdateText)
		return
	}
	r.sessions.set(userID, session{State: stateAwaitUpdateLesson})
	r.sendHTML(chatID, updatePromptText+"\n\n<b>Your lessons:</b>\n"+schedule.RenderRefs(lessons), nil)
}

func (r *Router) onUpdateLesson(ctx context.Context, chatID, userID int64, s session, text string) {
	ref, err := domain.ParseLessonRef(text)
	if err != nil {
		r.sessions.set(userID, s)
		r.sendHTML(chatID, refErrorText(err), nil)
		return
	}

	lessons, err := r.repo.ListForUser(ctx, userKey(userID))
	if err != nil {
		r.log.Warn("list lessons failed", zap.Int64("user", userID), zap.Error(err))
	}
	var found *domain.Lesson
	for i := range lessons {
		if lessons[i].Matches(ref.Day, ref.Time, ref.Subject) {
			found = &lessons[i]
			break
		}
	}
	if found == nil {
		r.sessions.set(userID, s)
		r.sendHTML(chatID, fmt.Sprintf("❌ Lesson not found: <b>%s</b> on %s at %s\n\nPlease check the details and try again:",
			html.EscapeString(ref.Subject), ref.Day.Title(), ref.Time), nil)
		return
	}

	s.State = stateAwaitUpdateLead
	s.UpdateTarget = ref
	r.sessions.set(userID, s)
	r.sendHTML(chatID,
		fmt.Sprintf("📚 <b>%s</b>\n📅 %s at %s\nCurrent reminder: %s\n\n⏰ Choose the new reminder:",
			html.EscapeString(found.Subject), found.Day.Title(), found.Time, found.Reminder),
		kbPtr(leadKeyboard(cbUpdate, true)))
}

func (r *Router) onUpdateLead(ctx context.Context, m messageRef, userID int64, s session, val string) {
	rem := domain.ReminderNone
	if val != cbNone {
		var ok bool
		if rem, ok = parseLead(val); !ok {
			return
		}
	}
	r.sessions.reset(userID)

	t := s.UpdateTarget
	user := userKey(userID)
	ok, err := r.repo.UpdateReminder(ctx, user, t.Day, t.Time, t.Subject, rem)
	switch {
	case err != nil:
		r.log.Error("update reminder failed", zap.String("user", user), zap.Error(err))
		r.edit(m, storeErrorText, nil)
	case !ok:
		r.edit(m, updateFailedText, nil)
	case rem.Enabled():
		r.edit(m, fmt.Sprintf("✅ <b>Reminder updated!</b>\n\n📚 %s\n📅 %s at %s\n⏰ Reminder: %s before",
			html.EscapeString(t.Subject), t.Day.Title(), t.Time, rem), nil)
	default:
		r.edit(m, fmt.Sprintf("🔕 <b>Reminder turned off</b>\n\n📚 %s\n📅 %s at %s",
			html.EscapeString(t.Subject), t.Day.Title(), t.Time), nil)
	}
}

// parseLead maps callback minutes ("5", "15", "30", "60") to a Reminder.
func parseLead(val string) (domain.Reminder, bool) {
	m, err := strconv.Atoi(val)
	if err != nil {
		return domain.ReminderNone, false
	}
	rem := domain.ReminderFromMinutes(m)
	return rem, rem.Enabled()
}

func refErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidDay):
		return badDayText
	case errors.Is(err, domain.ErrInvalidTime):
		return badRefTimeText
	default:
		return badRefText
	}
}
