// Package titleupdater refreshes conversation titles in the background.
//
// A conversation is created with a fallback title derived from its first
// message. Once the first exchange completes, the updater asks the model
// for a short summary title and, after a cooldown, replaces the fallback.
// Failures are swallowed: the conversation keeps its fallback title and
// the chat flow is never blocked.
package titleupdater

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anastasijaprogramer/chatgpt-clone/ai"
	"github.com/anastasijaprogramer/chatgpt-clone/server/metrics"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

const refreshTimeout = 30 * time.Second

type Updater struct {
	store     *store.Store
	generator *ai.TitleGenerator
	delay     time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
}

func New(s *store.Store, generator *ai.TitleGenerator, delay time.Duration) *Updater {
	return &Updater{
		store:     s,
		generator: generator,
		delay:     delay,
		pending:   make(map[string]struct{}),
	}
}

// Schedule queues a title refresh for the conversation. At most one refresh
// runs per conversation; later calls while one is pending are dropped.
// The given text is the user message the title is summarized from.
func (u *Updater) Schedule(conversationUID, text string) {
	u.mu.Lock()
	if _, ok := u.pending[conversationUID]; ok {
		u.mu.Unlock()
		return
	}
	u.pending[conversationUID] = struct{}{}
	u.mu.Unlock()

	u.wg.Add(1)
	time.AfterFunc(u.delay, func() {
		defer u.wg.Done()
		defer func() {
			u.mu.Lock()
			delete(u.pending, conversationUID)
			u.mu.Unlock()
		}()
		// The originating request is long gone, so run against a fresh
		// context rather than the request's.
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		u.refresh(ctx, conversationUID, text)
	})
}

// Wait blocks until all scheduled refreshes have finished. Used by tests.
func (u *Updater) Wait() {
	u.wg.Wait()
}

// WaitContext blocks until all scheduled refreshes have finished or the
// context is done, whichever comes first. Refreshes are best-effort, so
// graceful shutdown must not hold the process for a refresh that has only
// just been scheduled.
func (u *Updater) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Updater) refresh(ctx context.Context, conversationUID, text string) {
	title, err := u.generator.Generate(ctx, text)
	if err != nil || title == "" {
		metrics.TitleRefreshes.WithLabelValues("error").Inc()
		slog.Warn("title refresh failed, keeping fallback title",
			slog.String("conversation", conversationUID),
			slog.Any("error", err))
		return
	}

	// Only replace the fallback: a title the refresh already produced, or
	// one the user set by hand, must not be overwritten by a late retry.
	defaultSource := store.TitleSourceDefault
	err = u.store.UpdateTitleEntry(ctx, &store.UpdateTitleEntry{
		ConversationUID: conversationUID,
		Title:           title,
		TitleSource:     store.TitleSourceAuto,
		UpdatedTs:       time.Now().Unix(),
		IfSource:        &defaultSource,
	})
	if err != nil {
		metrics.TitleRefreshes.WithLabelValues("error").Inc()
		slog.Warn("failed to store refreshed title",
			slog.String("conversation", conversationUID),
			slog.Any("error", err))
		return
	}
	metrics.TitleRefreshes.WithLabelValues("ok").Inc()
	slog.Debug("conversation title refreshed",
		slog.String("conversation", conversationUID),
		slog.String("title", title))
}
