// Package ratelimit throttles classification work and DM input.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event identifies what is being limited.
type Event string

const (
	// EventClassify is one guild message sent to the classifier.
	EventClassify Event = "classify"
	// EventReportInput is one DM message fed to the report dialog.
	EventReportInput Event = "report_input"
	// EventCommand is one moderator command.
	EventCommand Event = "command"
)

// Config holds per-event limits. Missing or zero entries mean unlimited.
type Config struct {
	PerUserCooldown  map[Event]time.Duration
	PerGuildLimit    map[Event]int
	GuildResetPeriod time.Duration
	GlobalLimit      map[Event]int
	GlobalResetEvery time.Duration
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() *Config {
	return &Config{
		PerUserCooldown: map[Event]time.Duration{
			EventReportInput: 500 * time.Millisecond,
			EventCommand:     500 * time.Millisecond,
		},
		PerGuildLimit: map[Event]int{
			EventClassify: 120,
		},
		GuildResetPeriod: time.Minute,
		GlobalLimit: map[Event]int{
			EventClassify: 600,
		},
		GlobalResetEvery: time.Minute,
	}
}

type userKey struct {
	userID  uint64
	guildID uint64
	event   Event
}

type guildKey struct {
	guildID uint64
	event   Event
}

// Limiter applies a per-user cooldown, then a per-guild and a global counter.
type Limiter struct {
	config *Config
	now    func() time.Time
	logger *zap.Logger

	userMu   sync.Mutex
	lastSeen map[userKey]time.Time

	guildMu      sync.Mutex
	guildCounts  map[guildKey]int
	guildResetAt time.Time

	globalMu      sync.Mutex
	globalCounts  map[Event]int
	globalResetAt time.Time
}

// New creates a Limiter. A nil config uses DefaultConfig and a nil clock uses time.Now.
func New(config *Config, clock func() time.Time, logger *zap.Logger) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if clock == nil {
		clock = time.Now
	}

	now := clock()

	return &Limiter{
		config:        config,
		now:           clock,
		logger:        logger.Named("ratelimit"),
		lastSeen:      make(map[userKey]time.Time),
		guildCounts:   make(map[guildKey]int),
		guildResetAt:  now.Add(config.GuildResetPeriod),
		globalCounts:  make(map[Event]int),
		globalResetAt: now.Add(config.GlobalResetEvery),
	}
}

// Allow reports whether the event may be processed. DM events use guildID 0.
func (l *Limiter) Allow(event Event, userID, guildID uint64) bool {
	now := l.now()

	if !l.allowUser(event, userID, guildID, now) {
		return false
	}

	if !l.allowGuild(event, guildID, now) {
		l.logger.Debug("Guild limit reached",
			zap.String("event", string(event)),
			zap.Uint64("guild_id", guildID))
		return false
	}

	if !l.allowGlobal(event, now) {
		l.logger.Debug("Global limit reached", zap.String("event", string(event)))
		return false
	}

	return true
}

func (l *Limiter) allowUser(event Event, userID, guildID uint64, now time.Time) bool {
	cooldown := l.config.PerUserCooldown[event]
	if cooldown <= 0 {
		return true
	}

	l.userMu.Lock()
	defer l.userMu.Unlock()

	key := userKey{userID: userID, guildID: guildID, event: event}
	if last, ok := l.lastSeen[key]; ok && now.Sub(last) < cooldown {
		return false
	}

	l.lastSeen[key] = now

	return true
}

func (l *Limiter) allowGuild(event Event, guildID uint64, now time.Time) bool {
	limit := l.config.PerGuildLimit[event]
	if limit <= 0 || guildID == 0 {
		return true
	}

	l.guildMu.Lock()
	defer l.guildMu.Unlock()

	if now.After(l.guildResetAt) {
		clear(l.guildCounts)
		l.guildResetAt = now.Add(l.config.GuildResetPeriod)
	}

	key := guildKey{guildID: guildID, event: event}
	if l.guildCounts[key] >= limit {
		return false
	}

	l.guildCounts[key]++

	return true
}

func (l *Limiter) allowGlobal(event Event, now time.Time) bool {
	limit := l.config.GlobalLimit[event]
	if limit <= 0 {
		return true
	}

	l.globalMu.Lock()
	defer l.globalMu.Unlock()

	if now.After(l.globalResetAt) {
		clear(l.globalCounts)
		l.globalResetAt = now.Add(l.config.GlobalResetEvery)
	}

	if l.globalCounts[event] >= limit {
		return false
	}

	l.globalCounts[event]++

	return true
}

// Cleanup drops cooldown entries that have expired. Run it periodically.
func (l *Limiter) Cleanup() int {
	now := l.now()

	l.userMu.Lock()
	defer l.userMu.Unlock()

	removed := 0
	for key, last := range l.lastSeen {
		if now.Sub(last) >= l.config.PerUserCooldown[key.event] {
			delete(l.lastSeen, key)
			removed++
		}
	}

	return removed
}
