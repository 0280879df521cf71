package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anastasijaprogramer/chatgpt-clone/ai"
	"github.com/anastasijaprogramer/chatgpt-clone/server/auth"
	"github.com/anastasijaprogramer/chatgpt-clone/server/titleupdater"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

const testUserID = "user-1"

// mockDriver is an in-memory store driver with injectable failures.
type mockDriver struct {
	mu            sync.Mutex
	conversations map[string]*store.Conversation
	titleEntries  map[string]*store.TitleEntry
	attachments   map[string]*store.Attachment
	appends       []*store.AppendTurns
	titleUpdates  []*store.UpdateTitleEntry
	createErr     error
	getErr        error
}

func newMockDriver() *mockDriver {
	return &mockDriver{
		conversations: make(map[string]*store.Conversation),
		titleEntries:  make(map[string]*store.TitleEntry),
		attachments:   make(map[string]*store.Attachment),
	}
}

func (m *mockDriver) CreateConversation(_ context.Context, create *store.CreateConversation) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	parts := []store.Part{}
	if create.ImageRef != "" {
		parts = append(parts, store.Part{ImageRef: create.ImageRef})
	}
	parts = append(parts, store.Part{Text: create.FirstUserText})
	conversation := &store.Conversation{
		UID:       create.UID,
		UserID:    create.UserID,
		Assistant: create.Assistant,
		History:   []store.Turn{{Role: store.RoleUser, Parts: parts, CreatedTs: create.CreatedTs}},
		CreatedTs: create.CreatedTs,
		UpdatedTs: create.CreatedTs,
	}
	m.conversations[create.UID] = conversation
	m.titleEntries[create.UID] = &store.TitleEntry{
		ConversationUID: create.UID,
		UserID:          create.UserID,
		Title:           create.Title,
		TitleSource:     store.TitleSourceDefault,
		UpdatedTs:       create.CreatedTs,
	}
	return conversation, nil
}

func (m *mockDriver) GetConversation(_ context.Context, find *store.FindConversation) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, conversation := range m.conversations {
		if find.UID != nil && conversation.UID != *find.UID {
			continue
		}
		if find.UserID != nil && conversation.UserID != *find.UserID {
			continue
		}
		// Return a snapshot like the real drivers do: callers must not
		// observe later driver mutations through the returned pointer.
		snapshot := *conversation
		return &snapshot, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockDriver) AppendTurns(_ context.Context, add *store.AppendTurns) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[add.ConversationUID]
	if !ok || conversation.UserID != add.UserID {
		return store.ErrNotFound
	}
	conversation.History = append(conversation.History, add.Turns...)
	conversation.UpdatedTs = add.UpdatedTs
	m.appends = append(m.appends, add)
	return nil
}

func (m *mockDriver) UpdateConversation(_ context.Context, update *store.UpdateConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[update.ConversationUID]
	if !ok || conversation.UserID != update.UserID {
		return store.ErrNotFound
	}
	if update.Assistant != nil {
		conversation.Assistant = *update.Assistant
	}
	if update.UpdatedTs != nil {
		conversation.UpdatedTs = *update.UpdatedTs
	}
	return nil
}

func (m *mockDriver) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[del.ConversationUID]
	if !ok || conversation.UserID != del.UserID {
		return store.ErrNotFound
	}
	delete(m.conversations, del.ConversationUID)
	delete(m.titleEntries, del.ConversationUID)
	return nil
}

func (m *mockDriver) ListTitleEntries(_ context.Context, find *store.FindTitleEntry) ([]*store.TitleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []*store.TitleEntry
	for _, entry := range m.titleEntries {
		if find.UserID != nil && entry.UserID != *find.UserID {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *mockDriver) UpdateTitleEntry(_ context.Context, update *store.UpdateTitleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.titleEntries[update.ConversationUID]
	if !ok {
		return store.ErrNotFound
	}
	if update.IfSource != nil && entry.TitleSource != *update.IfSource {
		return nil
	}
	entry.Title = update.Title
	entry.TitleSource = update.TitleSource
	entry.UpdatedTs = update.UpdatedTs
	m.titleUpdates = append(m.titleUpdates, update)
	return nil
}

func (m *mockDriver) CreateAttachment(_ context.Context, create *store.Attachment) (*store.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[create.UID] = create
	return create, nil
}

func (m *mockDriver) GetAttachment(_ context.Context, find *store.FindAttachment) (*store.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, attachment := range m.attachments {
		if find.UID != nil && attachment.UID != *find.UID {
			continue
		}
		if find.UserID != nil && attachment.UserID != *find.UserID {
			continue
		}
		return attachment, nil
	}
	return nil, store.ErrNotFound
}

func (*mockDriver) Migrate(context.Context) error { return nil }

func (*mockDriver) Close() error { return nil }

// fakeInvoker returns canned results keyed by persona name.
type fakeInvoker struct {
	mu      sync.Mutex
	results map[string]*ai.Result
	errs    map[string]error
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		results: make(map[string]*ai.Result),
		errs:    make(map[string]error),
	}
}

func (f *fakeInvoker) GenerateContent(_ context.Context, _ []ai.Segment, persona ai.Persona) (*ai.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[persona.Name]; err != nil {
		return nil, err
	}
	if result := f.results[persona.Name]; result != nil {
		return result, nil
	}
	return &ai.Result{Text: persona.Name + " reply", Raw: json.RawMessage(`{}`)}, nil
}

type chatTestEnv struct {
	driver  *mockDriver
	invoker *fakeInvoker
	service *ChatService
	echo    *echo.Echo
}

func newChatTestEnv() *chatTestEnv {
	driver := newMockDriver()
	invoker := newFakeInvoker()
	storeInstance := store.New(driver, nil)
	updater := titleupdater.New(storeInstance, ai.NewTitleGenerator(invoker), 0)
	return &chatTestEnv{
		driver:  driver,
		invoker: invoker,
		service: &ChatService{Store: storeInstance, TitleUpdater: updater},
		echo:    echo.New(),
	}
}

func (env *chatTestEnv) request(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.echo.NewContext(req, rec)
	auth.SetUserID(c, testUserID)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	return c, rec
}

func (env *chatTestEnv) createChat(t *testing.T, text string) string {
	t.Helper()
	c, rec := env.request(http.MethodPost, "/api/chats", `{"text":"`+text+`","assistant":"THERAPIST"}`)
	require.NoError(t, env.service.CreateChat(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	response := &ChatResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
	return response.ID
}

func TestCreateChat(t *testing.T) {
	env := newChatTestEnv()

	c, rec := env.request(http.MethodPost, "/api/chats", `{"text":"help me sleep better","assistant":"FRIEND"}`)
	require.NoError(t, env.service.CreateChat(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	response := &ChatResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
	assert.NotEmpty(t, response.ID)
	assert.Equal(t, "FRIEND", response.Assistant)
	require.Len(t, response.History, 1)
	assert.Equal(t, "user", response.History[0].Role)

	entry := env.driver.titleEntries[response.ID]
	require.NotNil(t, entry)
	assert.Equal(t, "Help me sleep better", entry.Title)
	assert.Equal(t, store.TitleSourceDefault, entry.TitleSource)
}

func TestCreateChatValidation(t *testing.T) {
	env := newChatTestEnv()

	t.Run("missing text", func(t *testing.T) {
		c, _ := env.request(http.MethodPost, "/api/chats", `{"text":"  "}`)
		err := env.service.CreateChat(c)
		httpErr := &echo.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})

	t.Run("unknown assistant", func(t *testing.T) {
		c, _ := env.request(http.MethodPost, "/api/chats", `{"text":"hi","assistant":"ROBOT"}`)
		err := env.service.CreateChat(c)
		httpErr := &echo.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestGetChatNotFound(t *testing.T) {
	env := newChatTestEnv()

	c, _ := env.request(http.MethodGet, "/api/chats/missing", "", "id", "missing")
	err := env.service.GetChat(c)
	httpErr := &echo.HTTPError{}
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestGetChatForeignOwnerReadsAsNotFound(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "my private chat")

	c, _ := env.request(http.MethodGet, "/api/chats/"+uid, "", "id", uid)
	auth.SetUserID(c, "someone-else")
	err := env.service.GetChat(c)
	httpErr := &echo.HTTPError{}
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestGetChatCorruptedHistory(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "soon to be corrupted")
	env.driver.conversations[uid].History = nil

	c, _ := env.request(http.MethodGet, "/api/chats/"+uid, "", "id", uid)
	err := env.service.GetChat(c)
	httpErr := &echo.HTTPError{}
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestAppendExchange(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "tell me a story")

	c, rec := env.request(http.MethodPut, "/api/chats/"+uid,
		`{"answer":"Once upon a time...","assistant":"THERAPIST"}`, "id", uid)
	require.NoError(t, env.service.AppendExchange(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	conversation := env.driver.conversations[uid]
	require.Len(t, conversation.History, 2)
	assert.Equal(t, store.RoleModel, conversation.History[1].Role)
	assert.Equal(t, "Once upon a time...", conversation.History[1].Text())
}

func TestAppendExchangeSchedulesTitleRefresh(t *testing.T) {
	env := newChatTestEnv()
	env.invoker.results["summarizer"] = &ai.Result{Text: "Bedtime story", Raw: json.RawMessage(`{}`)}
	uid := env.createChat(t, "tell me a story")

	c, _ := env.request(http.MethodPut, "/api/chats/"+uid,
		`{"text":"a scary one","answer":"Here is a scary story."}`, "id", uid)
	require.NoError(t, env.service.AppendExchange(c))
	env.service.TitleUpdater.Wait()

	entry := env.driver.titleEntries[uid]
	require.NotNil(t, entry)
	assert.Equal(t, "Bedtime story", entry.Title)
	assert.Equal(t, store.TitleSourceAuto, entry.TitleSource)
}

func TestAppendExchangeSecondAppendDoesNotRefreshTitle(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "tell me a story")

	for _, body := range []string{
		`{"text":"a scary one","answer":"Here you go."}`,
		`{"text":"another","answer":"And another."}`,
	} {
		c, _ := env.request(http.MethodPut, "/api/chats/"+uid, body, "id", uid)
		require.NoError(t, env.service.AppendExchange(c))
	}
	env.service.TitleUpdater.Wait()

	// only the first exchange crosses the threshold
	require.Len(t, env.driver.titleUpdates, 1)
}

func TestAppendExchangeValidation(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "hello")

	tests := []struct {
		name string
		body string
	}{
		{"no answer at all", `{"text":"hi"}`},
		{"both single and dual answers", `{"answer":"a","therapistAnswer":"b","friendAnswer":"c"}`},
		{"half a dual answer", `{"therapistAnswer":"only one"}`},
		{"image without text", `{"imageRef":"ref-1","answer":"a"}`},
		{"both as single assistant", `{"answer":"a","assistant":"BOTH"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := env.request(http.MethodPut, "/api/chats/"+uid, tt.body, "id", uid)
			err := env.service.AppendExchange(c)
			httpErr := &echo.HTTPError{}
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		})
	}
}

func TestAppendExchangeDualAnswers(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "I feel stuck")

	c, _ := env.request(http.MethodPut, "/api/chats/"+uid,
		`{"text":"what should I do?","therapistAnswer":"Let us unpack that.","friendAnswer":"Go for a walk!"}`,
		"id", uid)
	require.NoError(t, env.service.AppendExchange(c))

	conversation := env.driver.conversations[uid]
	require.Len(t, conversation.History, 3)
	modelTurn := conversation.History[2]
	assert.Equal(t, store.RoleModel, modelTurn.Role)
	assert.Equal(t, "BOTH", modelTurn.Assistant)
	assert.Contains(t, modelTurn.Text(), "Let us unpack that.")
	assert.Contains(t, modelTurn.Text(), "Go for a walk!")
}

func TestSwitchAssistant(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "hello")

	c, rec := env.request(http.MethodPatch, "/api/chats/"+uid+"/assistant",
		`{"assistant":"BOTH"}`, "id", uid)
	require.NoError(t, env.service.SwitchAssistant(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "BOTH", env.driver.conversations[uid].Assistant)

	c, _ = env.request(http.MethodPatch, "/api/chats/"+uid+"/assistant",
		`{"assistant":"ROBOT"}`, "id", uid)
	err := env.service.SwitchAssistant(c)
	httpErr := &echo.HTTPError{}
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestDeleteChat(t *testing.T) {
	env := newChatTestEnv()
	uid := env.createChat(t, "delete me")

	c, rec := env.request(http.MethodDelete, "/api/chats/"+uid, "", "id", uid)
	require.NoError(t, env.service.DeleteChat(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, env.driver.conversations, uid)
	assert.NotContains(t, env.driver.titleEntries, uid)

	c, _ = env.request(http.MethodDelete, "/api/chats/"+uid, "", "id", uid)
	err := env.service.DeleteChat(c)
	httpErr := &echo.HTTPError{}
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestListChats(t *testing.T) {
	env := newChatTestEnv()
	env.createChat(t, "first topic")
	env.createChat(t, "second topic")

	c, rec := env.request(http.MethodGet, "/api/chats", "")
	require.NoError(t, env.service.ListChats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []*ChatListEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)
}
