package ports

import (
	"context"
	"iter"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// SignalSource lee las publicaciones de una cuenta que emite señales.
type SignalSource interface {
	// FetchPosts returns the account's posts newer than sinceID, oldest
	// pages last. The sequence is lazy, finite and can be ranged once.
	// Errors are *domain.SignalSourceAuthError or
	// *domain.SignalSourceTransientError.
	FetchPosts(ctx context.Context, account string, sinceID int64) iter.Seq2[domain.Post, error]
}
