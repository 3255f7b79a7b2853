package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// UI texts (HTML parse mode).
const (
	helpText = "<b>📚 Available Commands:</b>\n\n" +
		"/start - Show bot information and available commands\n" +
		"/schedule - View your weekly schedule with all lessons\n" +
		"/lessons_today - View today's lessons\n" +
		"/lessons_tomorrow - View tomorrow's lessons\n" +
		"/add_lesson - Add a new lesson to your schedule\n" +
		"/remove_lesson - Remove a lesson from your schedule\n" +
		"/turn_on_off - Turn on/off reminder for a specific lesson\n" +
		"/cancel - Cancel the current operation\n" +
		"/help - Show this help message\n\n" +
		"<i>Note: Telegram commands can't contain spaces.</i>"

	startText = "<b>👋 Welcome to Lesson Reminder Bot!</b>\n\n" +
		"I'm here to help you manage and remember your lessons! 📖\n\n" +
		"<b>Here's what I can do:</b>\n" +
		"• 📅 Store and display your weekly schedule\n" +
		"• ⏰ Send you reminders before each lesson\n" +
		"• ✏️ Add new lessons easily\n" +
		"• 🗑️ Remove lessons you no longer need\n\n" +
		"Use /help to see all available commands, or try /add_lesson to get started!"

	noLessonsText    = "📭 You don't have any lessons scheduled yet!\n\nUse /add_lesson to add your first lesson."
	cancelledText    = "❌ Operation cancelled."
	expiredText      = "This menu has expired. Start again from the command."
	apologyText      = "⚠️ Sorry, something went wrong. Please try again."
	storeErrorText   = "⚠️ Could not save your changes. Please try again later."
	unknownCmdText   = "❓ I don't recognize that command.\n\nTry one of: /start, /help, /schedule, /lessons_today, /lessons_tomorrow, /add_lesson, /remove_lesson, /turn_on_off.\n\nNote: Commands must match exactly and contain no spaces."
	unknownTextReply = "❌ Invalid input!\n\nPlease use one of the available commands:\n" +
		"/start - Show bot info\n/help - Show all commands\n/schedule - View weekly schedule\n" +
		"/add_lesson - Add a lesson\n/remove_lesson - Remove a lesson"

	askCourseText   = "📝 <b>Add New Lesson</b>\n\nPlease enter the <b>course name</b>:\n\nExample: <code>Calculus 2</code>"
	emptyCourseText = "❌ Course name cannot be empty! Please enter a valid course name:"
	badTimeText     = "❌ Invalid time format!\n\nPlease use format: <code>##:##</code>\nExample: <code>09:30</code> or <code>14:00</code>"
	leadPromptText  = "⏰ When would you like to be reminded before each lesson?"

	removeHeaderText  = "🗑️ <b>Remove Lesson</b>\n\n📅 Select the day:"
	nothingRemoveText = "📭 You don't have any lessons to remove!"
	removeFailedText  = "❌ Failed to remove lesson. Please try again."

	updatePromptText = "⏰ <b>Turn On/Off Reminder</b>\n\nPlease enter the lesson details to modify:\n" +
		"<code>Day, Time, Subject</code>\n\nExample: <code>Monday, 14:00, Calculus 2</code>"
	nothingUpdateText = "📭 You don't have any lessons to modify!"
	badRefText        = "❌ Invalid format! Please use:\n<code>Day, Time, Subject</code>\n\nExample: <code>Monday, 14:00, Calculus 2</code>"
	badDayText        = "❌ Invalid day! Please use one of:\nMonday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday"
	badRefTimeText    = "❌ Invalid time format! Please use 24-hour format (HH:MM).\nExample: <code>14:00</code> for 2 PM"
	updateFailedText  = "❌ Failed to update reminder. Please try again."
)

// botCommands is the menu registered with Telegram at startup.
var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Show bot information"},
	{Command: "help", Description: "Show help message"},
	{Command: "schedule", Description: "View your weekly schedule"},
	{Command: "lessons_today", Description: "View today's lessons"},
	{Command: "lessons_tomorrow", Description: "View tomorrow's lessons"},
	{Command: "add_lesson", Description: "Add a new lesson"},
	{Command: "remove_lesson", Description: "Remove a lesson"},
	{Command: "turn_on_off", Description: "Turn on/off a reminder"},
	{Command: "cancel", Description: "Cancel the current operation"},
}

// Callback data prefixes.
const (
	cbDay      = "day:"
	cbRemind   = "remind:"
	cbLead     = "lead:"
	cbRmDay    = "rmday:"
	cbRmLesson = "rmlesson:"
	cbUpdate   = "upd:"

	cbCancel = "cancel"
	cbBack   = "back"
	cbNone   = "none"
)

// dayKeyboard lays the week out two days per row.
func dayKeyboard(prefix string, withCancel bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range domain.Weekdays {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(d.Title(), prefix+d.String()))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if withCancel {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", prefix+cbCancel),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func reminderChoiceKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Yes, set reminder", cbRemind+"yes")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ No reminder", cbRemind+"no")),
	)
}

// leadKeyboard offers every lead time; withNone adds a "no reminder" option.
func leadKeyboard(prefix string, withNone bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range domain.Reminders {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.String(), prefix+strconv.Itoa(r.Minutes())),
		))
	}
	if withNone {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Don't set a reminder", prefix+cbNone),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// removeLessonKeyboard lists lessons by index plus Back/Cancel.
func removeLessonKeyboard(lessons []domain.Lesson) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, l := range lessons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s - %s", l.Time, l.Subject), cbRmLesson+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Back", cbRmLesson+cbBack),
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbRmLesson+cbCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
