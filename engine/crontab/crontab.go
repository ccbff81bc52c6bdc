package crontab

import (
	"time"

	"github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/gwutils"
)

const (
	_CRONTAB_TIME_OFFSET = time.Second * 2
)

// Every returns the schedule field matching every n-th unit, Every(1) matches all
func Every(n int) int {
	return -n
}

// Schedule is the time condition of a crontab entry
//
// Each field matches the exact value when it is not negative, or every -value units otherwise.
// DayOfWeek is 0 or 7 for Sunday and only accepts -1 as "any day".
type Schedule struct {
	Minute, Hour, Day, Month, DayOfWeek int
}

// Daily returns the schedule matching hour:minute of every day
func Daily(hour, minute int) Schedule {
	return Schedule{Minute: minute, Hour: hour, Day: -1, Month: -1, DayOfWeek: -1}
}

// Hourly returns the schedule matching the minute of every hour
func Hourly(minute int) Schedule {
	return Schedule{Minute: minute, Hour: -1, Day: -1, Month: -1, DayOfWeek: -1}
}

func (s Schedule) match(t time.Time) bool {
	return matchField(s.Minute, t.Minute()) &&
		matchField(s.Hour, t.Hour()) &&
		matchField(s.Day, t.Day()) &&
		matchField(s.Month, int(t.Month())) &&
		s.matchWeekday(t.Weekday())
}

func matchField(cond int, v int) bool {
	if cond >= 0 {
		return cond == v
	}
	return v%-cond == 0
}

func (s Schedule) matchWeekday(weekday time.Weekday) bool {
	switch {
	case s.DayOfWeek < 0:
		return true
	case s.DayOfWeek == 0 || s.DayOfWeek == 7:
		return weekday == time.Sunday
	default:
		return s.DayOfWeek == int(weekday)
	}
}

func (s Schedule) validate() {
	if s.Minute > 59 || s.Minute < -60 {
		gwlog.Panicf("invalid minute = %d", s.Minute)
	}
	if s.Hour > 23 || s.Hour < -24 {
		gwlog.Panicf("invalid hour = %d", s.Hour)
	}
	if s.Day > 31 || s.Day < -31 || s.Day == 0 {
		gwlog.Panicf("invalid day = %d", s.Day)
	}
	if s.Month > 12 || s.Month < -12 || s.Month == 0 {
		gwlog.Panicf("invalid month = %d", s.Month)
	}
	if s.DayOfWeek > 7 || s.DayOfWeek < -1 {
		gwlog.Panicf("invalid dayofweek = %d", s.DayOfWeek)
	}
}

// Handle is returned by Register and can be used to cancel the entry
type Handle int

type entry struct {
	schedule Schedule
	cb       func()
}

// Crontab runs callbacks on the timer routine when their schedules match the wall clock
//
// It is checked once a minute, a couple of seconds after the minute starts.
type Crontab struct {
	entries          map[Handle]*entry
	cancelledHandles []Handle
	nextHandle       Handle
	startTimer       *timer.Timer
	repeatTimer      *timer.Timer
}

// New creates an empty crontab, it checks nothing until Start
func New() *Crontab {
	return &Crontab{
		entries:    map[Handle]*entry{},
		nextHandle: 1,
	}
}

// Register a callback which will be executed when the schedule matches
func (ct *Crontab) Register(schedule Schedule, cb func()) Handle {
	schedule.validate()

	h := ct.nextHandle
	ct.nextHandle++
	ct.entries[h] = &entry{
		schedule: schedule,
		cb:       cb,
	}
	return h
}

// Unregister a registered crontab handle, it is safe to call from callbacks
func (ct *Crontab) Unregister(h Handle) {
	ct.cancelledHandles = append(ct.cancelledHandles, h)
}

// Len returns the number of registered entries
func (ct *Crontab) Len() int {
	ct.unregisterCancelledHandles()
	return len(ct.entries)
}

func (ct *Crontab) unregisterCancelledHandles() {
	for _, h := range ct.cancelledHandles {
		gwlog.Debugf("Crontab: cancelling %d", h)
		delete(ct.entries, h)
	}
	ct.cancelledHandles = nil
}

// Start aligns the check timer to the next minute
func (ct *Crontab) Start() {
	now := time.Now()
	sec := now.Second()
	var d time.Duration
	if time.Second*time.Duration(sec) < _CRONTAB_TIME_OFFSET {
		d = _CRONTAB_TIME_OFFSET - time.Second*time.Duration(sec)
	} else {
		d = time.Second*time.Duration(60-sec) + _CRONTAB_TIME_OFFSET
	}

	d -= time.Nanosecond * time.Duration(now.Nanosecond())
	gwlog.Debugf("Crontab: current time is %s, will setup repeat time after %s", now, d)
	ct.startTimer = timer.AddCallback(d, func() {
		ct.startTimer = nil
		ct.repeatTimer = timer.AddTimer(time.Minute, func() {
			ct.check(time.Now())
		})
		ct.check(time.Now())
	})
}

// Stop cancels the check timer
func (ct *Crontab) Stop() {
	if ct.startTimer != nil {
		ct.startTimer.Cancel()
		ct.startTimer = nil
	}
	if ct.repeatTimer != nil {
		ct.repeatTimer.Cancel()
		ct.repeatTimer = nil
	}
}

func (ct *Crontab) check(now time.Time) {
	ct.unregisterCancelledHandles()

	gwlog.Debugf("Crontab: checking %d callbacks ...", len(ct.entries))
	for _, entry := range ct.entries {
		if entry.schedule.match(now) {
			gwutils.RunPanicless(entry.cb)
		}
	}

	ct.unregisterCancelledHandles()
}
