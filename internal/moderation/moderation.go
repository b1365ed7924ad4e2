// Package moderation applies ban and unban actions to lists of targets.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/metrics"
	"github.com/m3rciful/appealbot/internal/role"
	"github.com/m3rciful/appealbot/internal/store"
)

// Mode selects the action applied to every target.
type Mode int

const (
	// Ban blocks targets for the requested term.
	Ban Mode = iota
	// Unban lifts running bans by ending them now.
	Unban
)

func (m Mode) String() string {
	if m == Unban {
		return "unban"
	}
	return "ban"
}

// Outcome is the per-target result.
type Outcome string

const (
	Applied          Outcome = "applied"
	SkippedSelf      Outcome = "skipped_self"
	SkippedPrivilege Outcome = "skipped_privilege"
	SkippedInvalidID Outcome = "skipped_invalid_id"
	SkippedNotFound  Outcome = "skipped_not_found"
	Failed           Outcome = "failed"
)

// Store is the subset of store.Store the processor needs.
type Store interface {
	GetRole(ctx context.Context, id int64, quiet bool) (role.Role, error)
	BanUser(ctx context.Context, id int64, opts store.BanOpts) (time.Time, error)
}

// Request describes one batch.
type Request struct {
	ActorID   int64
	ActorRole role.Role
	// Targets is the raw whitespace separated list typed by the moderator.
	Targets  string
	Mode     Mode
	TermDays int
	Reason   string
}

// Target is the resolution of one token.
type Target struct {
	Token   string
	UserID  int64
	Outcome Outcome
	Err     error
}

// Result aggregates a processed batch.
type Result struct {
	Targets []Target
	Applied []int64
	// BanEnd is the end of the last applied ban only. Earlier targets in the
	// batch may end at a slightly different instant; callers use it for the
	// summary line.
	BanEnd time.Time
}

// Skipped counts targets that were not applied, failures included.
func (r Result) Skipped() int {
	return len(r.Targets) - len(r.Applied)
}

// Processor runs ban batches against a Store.
type Processor struct {
	store Store
	now   func() time.Time
}

// New returns a Processor backed by s.
func New(s Store) *Processor {
	return &Processor{store: s, now: time.Now}
}

// WithClock overrides the time source used for ban start.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process applies req to every token. A failing target never stops the batch.
func (p *Processor) Process(ctx context.Context, req Request) Result {
	start := time.Now()
	term := req.TermDays
	if req.Mode == Unban {
		term = 0
	}

	var res Result
	for _, tok := range strings.Fields(req.Targets) {
		t := p.apply(ctx, req, tok, term, &res)
		res.Targets = append(res.Targets, t)
		metrics.BanTargets.WithLabelValues(req.Mode.String(), string(t.Outcome)).Inc()
		if t.Outcome == Failed {
			logger.LogEvent(ctx, logger.WF, slog.LevelWarn, "moderation.target.fail",
				slog.String("mode", req.Mode.String()),
				slog.Int64("target_id", t.UserID),
				logger.Err(t.Err),
			)
		}
	}

	logger.LogEvent(ctx, logger.WF, slog.LevelInfo, "moderation.batch",
		slog.String("mode", req.Mode.String()),
		slog.Int64("actor_id", req.ActorID),
		slog.Int("targets", len(res.Targets)),
		slog.Int("applied", len(res.Applied)),
		slog.Int("skipped", res.Skipped()),
		slog.Int("term_days", term),
		slog.Duration("duration", logger.Took(start)),
	)
	return res
}

func (p *Processor) apply(ctx context.Context, req Request, tok string, term int, res *Result) Target {
	t := Target{Token: tok}
	id, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || id <= 0 {
		t.Outcome = SkippedInvalidID
		return t
	}
	t.UserID = id
	if id == req.ActorID {
		t.Outcome = SkippedSelf
		return t
	}

	target, err := p.store.GetRole(ctx, id, false)
	switch {
	case errors.Is(err, store.ErrNotFound):
		t.Outcome = SkippedNotFound
		return t
	case err != nil:
		t.Outcome, t.Err = Failed, err
		return t
	case target.AtLeast(req.ActorRole):
		t.Outcome = SkippedPrivilege
		return t
	}

	end, err := p.store.BanUser(ctx, id, store.BanOpts{
		Start:    p.now(),
		TermDays: term,
		Reason:   req.Reason,
		ActorID:  req.ActorID,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		t.Outcome = SkippedNotFound
		return t
	case err != nil:
		t.Outcome, t.Err = Failed, err
		return t
	}
	t.Outcome = Applied
	res.Applied = append(res.Applied, id)
	res.BanEnd = end
	return t
}
