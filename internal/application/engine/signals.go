package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// refreshSignals fetches new posts of every source account and merges the
// recognised signals. Transient failures skip the account for this cycle;
// an auth failure is returned.
func (e *Engine) refreshSignals(ctx context.Context) (int, error) {
	merged := 0
	for _, account := range e.accounts {
		n, err := e.refreshAccount(ctx, account)
		merged += n
		if err == nil {
			continue
		}
		if domain.IsFatal(err) {
			return merged, err
		}
		slog.Warn("engine: signals not refreshed", "account", account, "err", err)
	}
	return merged, nil
}

// refreshAccount merges one account's posts. The cursor only advances when
// the whole sequence was read, so a page failure never skips older posts.
func (e *Engine) refreshAccount(ctx context.Context, account string) (int, error) {
	since := e.cursors[account]
	highest := since
	merged := 0

	for post, err := range e.source.FetchPosts(ctx, account, since) {
		if err != nil {
			var (
				auth      *domain.SignalSourceAuthError
				transient *domain.SignalSourceTransientError
			)
			if errors.As(err, &auth) || errors.As(err, &transient) {
				return merged, err
			}
			return merged, &domain.SignalSourceTransientError{Account: account, Err: err}
		}
		highest = max(highest, post.ID)

		pos, token, ok := domain.ParseSignal(post.Text)
		if !ok {
			continue
		}
		pc, ok := e.pairForToken(token)
		if !ok || pc.SourceAccount != account {
			slog.Debug("engine: ignoring signal for untracked pair", "account", account, "token", token, "post", post.ID)
			continue
		}

		candidate := domain.SignalRecord{Position: pos, SequenceID: post.ID, ObservedAt: post.CreatedAt}
		before := e.state[pc.Pair].Signal
		e.state = domain.MergeSignal(e.state, pc.Pair, account, candidate)
		after := e.state[pc.Pair].Signal

		if before == nil || *before != *after {
			merged++
			e.metrics.SignalMerged(pc.Pair)
			slog.Info("engine: signal merged",
				"pair", pc.Pair,
				"position", pos.String(),
				"post", post.ID,
				"account", account,
			)
		}
	}

	e.cursors[account] = highest
	return merged, nil
}

// pairForToken resolves a signal token through the alias table.
func (e *Engine) pairForToken(token string) (domain.PairConfig, bool) {
	if alias, ok := e.cfg.Aliases[token]; ok {
		token = alias
	}
	for _, pc := range e.cfg.Pairs {
		if pc.Pair == token {
			return pc, true
		}
	}
	return domain.PairConfig{}, false
}
