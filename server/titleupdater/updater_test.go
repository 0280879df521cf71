package titleupdater

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anastasijaprogramer/chatgpt-clone/ai"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

// fakeInvoker returns a canned title text or error.
type fakeInvoker struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeInvoker) GenerateContent(_ context.Context, _ []ai.Segment, _ ai.Persona) (*ai.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Result{Text: f.text, Raw: json.RawMessage(`{}`)}, nil
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// mockDriver records title updates and lets tests inject store failures.
type mockDriver struct {
	mu             sync.Mutex
	titleUpdates   []*store.UpdateTitleEntry
	updateTitleErr error
}

func (m *mockDriver) UpdateTitleEntry(_ context.Context, update *store.UpdateTitleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateTitleErr != nil {
		return m.updateTitleErr
	}
	m.titleUpdates = append(m.titleUpdates, update)
	return nil
}

func (m *mockDriver) recordedUpdates() []*store.UpdateTitleEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.UpdateTitleEntry(nil), m.titleUpdates...)
}

func (*mockDriver) CreateConversation(context.Context, *store.CreateConversation) (*store.Conversation, error) {
	return nil, nil
}

func (*mockDriver) GetConversation(context.Context, *store.FindConversation) (*store.Conversation, error) {
	return nil, store.ErrNotFound
}

func (*mockDriver) AppendTurns(context.Context, *store.AppendTurns) error { return nil }

func (*mockDriver) UpdateConversation(context.Context, *store.UpdateConversation) error { return nil }

func (*mockDriver) DeleteConversation(context.Context, *store.DeleteConversation) error { return nil }

func (*mockDriver) ListTitleEntries(context.Context, *store.FindTitleEntry) ([]*store.TitleEntry, error) {
	return nil, nil
}

func (*mockDriver) CreateAttachment(context.Context, *store.Attachment) (*store.Attachment, error) {
	return nil, nil
}

func (*mockDriver) GetAttachment(context.Context, *store.FindAttachment) (*store.Attachment, error) {
	return nil, store.ErrNotFound
}

func (*mockDriver) Migrate(context.Context) error { return nil }

func (*mockDriver) Close() error { return nil }

func newTestUpdater(driver *mockDriver, invoker ai.Invoker, delay time.Duration) *Updater {
	return New(store.New(driver, nil), ai.NewTitleGenerator(invoker), delay)
}

func TestRefreshReplacesFallbackTitle(t *testing.T) {
	driver := &mockDriver{}
	invoker := &fakeInvoker{text: "Weekend plans"}
	updater := newTestUpdater(driver, invoker, 0)

	updater.Schedule("conv-1", "what should I do this weekend?")
	updater.Wait()

	updates := driver.recordedUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "conv-1", updates[0].ConversationUID)
	assert.Equal(t, "Weekend plans", updates[0].Title)
	assert.Equal(t, store.TitleSourceAuto, updates[0].TitleSource)
	require.NotNil(t, updates[0].IfSource)
	assert.Equal(t, store.TitleSourceDefault, *updates[0].IfSource)
}

func TestRefreshSwallowsGenerationFailure(t *testing.T) {
	driver := &mockDriver{}
	invoker := &fakeInvoker{err: errors.New("backend down")}
	updater := newTestUpdater(driver, invoker, 0)

	updater.Schedule("conv-1", "hello")
	updater.Wait()

	assert.Empty(t, driver.recordedUpdates())
}

func TestRefreshSwallowsStoreFailure(t *testing.T) {
	driver := &mockDriver{updateTitleErr: errors.New("disk full")}
	invoker := &fakeInvoker{text: "A title"}
	updater := newTestUpdater(driver, invoker, 0)

	updater.Schedule("conv-1", "hello")
	updater.Wait()

	assert.Empty(t, driver.recordedUpdates())
}

func TestScheduleDedupesPendingRefresh(t *testing.T) {
	driver := &mockDriver{}
	invoker := &fakeInvoker{text: "Only once"}
	updater := newTestUpdater(driver, invoker, 30*time.Millisecond)

	updater.Schedule("conv-1", "first")
	updater.Schedule("conv-1", "second")
	updater.Wait()

	assert.Equal(t, 1, invoker.callCount())
	require.Len(t, driver.recordedUpdates(), 1)
	assert.Equal(t, "Only once", driver.recordedUpdates()[0].Title)
}

func TestWaitContextGivesUpOnPendingRefresh(t *testing.T) {
	driver := &mockDriver{}
	invoker := &fakeInvoker{text: "Never lands"}
	updater := newTestUpdater(driver, invoker, time.Hour)

	updater.Schedule("conv-1", "first")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := updater.WaitContext(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, invoker.callCount())
}

func TestWaitContextReturnsOnceRefreshesFinish(t *testing.T) {
	driver := &mockDriver{}
	invoker := &fakeInvoker{text: "Done"}
	updater := newTestUpdater(driver, invoker, 0)

	updater.Schedule("conv-1", "first")

	require.NoError(t, updater.WaitContext(context.Background()))
	assert.Len(t, driver.recordedUpdates(), 1)
}

func TestScheduleSeparateConversations(t *testing.T) {
	driver := &mockDriver{}
	invoker := &fakeInvoker{text: "Shared title"}
	updater := newTestUpdater(driver, invoker, 0)

	updater.Schedule("conv-1", "first")
	updater.Schedule("conv-2", "second")
	updater.Wait()

	assert.Len(t, driver.recordedUpdates(), 2)
}
