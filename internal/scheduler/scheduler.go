package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ykvlv/lesson-bot/internal/domain"
	"github.com/ykvlv/lesson-bot/internal/store"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Options tune the sweep. Zero fields take defaults.
type Options struct {
	Interval    time.Duration    // between sweeps, default 60s
	StartDelay  time.Duration    // before the first sweep, default 10s; negative means none
	SendTimeout time.Duration    // per message, default 10s
	Location    *time.Location   // operating timezone, default UTC+6
	Clock       func() time.Time // default time.Now
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 60 * time.Second
	}
	switch {
	case o.StartDelay == 0:
		o.StartDelay = 10 * time.Second
	case o.StartDelay < 0:
		o.StartDelay = 0
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.Location == nil {
		o.Location = domain.DefaultLocation
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Stats summarizes one sweep.
type Stats struct {
	Users   int
	Lessons int
	Due     int
	Sent    int
	Failed  int
}

// Scheduler periodically scans every user's lessons and delivers due reminders.
type Scheduler struct {
	repo   store.Repo
	log    *zap.Logger
	sender Sender
	opts   Options
}

// New creates a new Scheduler.
func New(repo store.Repo, log *zap.Logger, sender Sender, opts Options) *Scheduler {
	return &Scheduler{
		repo:   repo,
		log:    log,
		sender: sender,
		opts:   opts.withDefaults(),
	}
}

// Run waits StartDelay, sweeps once, then sweeps every Interval until ctx is
// canceled. Sweeps never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	delay := time.NewTimer(s.opts.StartDelay)
	select {
	case <-ctx.Done():
		delay.Stop()
		s.log.Info("scheduler stopping")
		return
	case <-delay.C:
	}

	cl := cronLogger{s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(func() { s.tick(ctx) }))

	s.tick(ctx)
	c.Start()
	s.log.Info("scheduler started", zap.Duration("interval", s.opts.Interval))

	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-c.Stop().Done()
}

func (s *Scheduler) tick(ctx context.Context) {
	st := s.Sweep(ctx)
	if st.Due > 0 || st.Failed > 0 {
		s.log.Info("sweep done",
			zap.Int("users", st.Users),
			zap.Int("lessons", st.Lessons),
			zap.Int("due", st.Due),
			zap.Int("sent", st.Sent),
			zap.Int("failed", st.Failed),
		)
	}
}

// Sweep performs one scheduling cycle: load everything once, evaluate every
// lesson, send due reminders and record their reminder instant.
func (s *Scheduler) Sweep(ctx context.Context) Stats {
	var st Stats
	now := s.opts.Clock().In(s.opts.Location)

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		s.log.Error("ListAll failed", zap.Error(err))
		return st
	}

	users := make([]string, 0, len(all))
	for u := range all {
		users = append(users, u)
	}
	sort.Strings(users)

	for _, user := range users {
		if ctx.Err() != nil {
			return st
		}
		chatID, err := strconv.ParseInt(user, 10, 64)
		if err != nil {
			s.log.Warn("skipping non-numeric user id", zap.String("user", user))
			continue
		}
		st.Users++

		// Duplicates share a natural key and a marker; remind once.
		seen := make(map[domain.LessonRef]bool)
		for _, l := range all[user] {
			key := l.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			st.Lessons++
			s.processLesson(ctx, user, chatID, l, now, &st)
		}
	}
	return st
}

// processLesson evaluates and, if due, delivers one reminder. Failures and
// panics are logged and counted, never propagated.
func (s *Scheduler) processLesson(ctx context.Context, user string, chatID int64, l domain.Lesson, now time.Time, st *Stats) {
	defer func() {
		if r := recover(); r != nil {
			st.Failed++
			s.log.Error("reminder panicked",
				zap.String("user", user),
				zap.String("subject", l.Subject),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	d := domain.Evaluate(l, now)
	if !d.Due {
		return
	}
	st.Due++

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	err := s.sender.SendMessage(sendCtx, chatID, ReminderText(l))
	cancel()
	if err != nil {
		st.Failed++
		s.log.Error("send failed", zap.Error(err), zap.Int64("chatID", chatID), zap.String("subject", l.Subject))
		return
	}
	st.Sent++

	ok, err := s.repo.UpdateLastNotified(ctx, user, l.Day, l.Time, l.Subject, d.ReminderAt)
	if err != nil {
		s.log.Error("UpdateLastNotified failed", zap.Error(err), zap.String("user", user), zap.String("subject", l.Subject))
		return
	}
	if !ok {
		s.log.Warn("lesson vanished before marker update", zap.String("user", user), zap.String("subject", l.Subject))
	}
}

// ReminderText is the message delivered for a due lesson.
func ReminderText(l domain.Lesson) string {
	return fmt.Sprintf("⏰ Reminder: %s\n📅 %s at %s\n(in %s)", l.Subject, l.Day.Title(), l.Time, l.Reminder)
}
