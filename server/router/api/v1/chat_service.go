package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/anastasijaprogramer/chatgpt-clone/ai"
	"github.com/anastasijaprogramer/chatgpt-clone/server/auth"
	"github.com/anastasijaprogramer/chatgpt-clone/server/titleupdater"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

type ChatService struct {
	Store        *store.Store
	TitleUpdater *titleupdater.Updater
}

type CreateChatRequest struct {
	Text      string `json:"text"`
	Assistant string `json:"assistant"`
	ImageRef  string `json:"imageRef,omitempty"`
}

type ChatResponse struct {
	ID        string         `json:"id"`
	Assistant string         `json:"assistant"`
	History   []TurnResponse `json:"history,omitempty"`
	CreatedTs int64          `json:"createdTs"`
	UpdatedTs int64          `json:"updatedTs"`
}

type TurnResponse struct {
	Role      string         `json:"role"`
	Parts     []PartResponse `json:"parts"`
	Assistant string         `json:"assistant,omitempty"`
	CreatedTs int64          `json:"createdTs"`
}

type PartResponse struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
}

type ChatListEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedTs int64  `json:"updatedTs"`
}

type AppendExchangeRequest struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`

	// Exactly one shape: a single-persona answer, or both dual answers.
	Assistant       string `json:"assistant,omitempty"`
	Answer          string `json:"answer,omitempty"`
	TherapistAnswer string `json:"therapistAnswer,omitempty"`
	FriendAnswer    string `json:"friendAnswer,omitempty"`
}

type SwitchAssistantRequest struct {
	Assistant string `json:"assistant"`
}

func (s *ChatService) CreateChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	request := &CreateChatRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	text := strings.TrimSpace(request.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	assistant := ai.AssistantTherapist
	if request.Assistant != "" {
		parsed, err := ai.ParseAssistant(request.Assistant)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown assistant %q", request.Assistant))
		}
		assistant = parsed
	}

	now := time.Now().Unix()
	conversation, err := s.Store.CreateConversation(ctx, &store.CreateConversation{
		UID:           shortuuid.New(),
		UserID:        userID,
		Assistant:     string(assistant),
		FirstUserText: text,
		ImageRef:      request.ImageRef,
		Title:         ai.FallbackTitle(text),
		CreatedTs:     now,
	})
	if err != nil {
		slog.Error("failed to create conversation", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create conversation")
	}

	return c.JSON(http.StatusCreated, convertConversation(conversation))
}

func (s *ChatService) ListChats(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	entries, err := s.Store.ListTitleEntries(ctx, &store.FindTitleEntry{UserID: &userID})
	if err != nil {
		slog.Error("failed to list conversations", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list conversations")
	}

	response := make([]*ChatListEntry, 0, len(entries))
	for _, entry := range entries {
		response = append(response, &ChatListEntry{
			ID:        entry.ConversationUID,
			Title:     entry.Title,
			UpdatedTs: entry.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

func (s *ChatService) GetChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	uid := c.Param("id")

	conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{UID: &uid, UserID: &userID})
	if err != nil {
		return chatStoreError(err, uid)
	}
	return c.JSON(http.StatusOK, convertConversation(conversation))
}

func (s *ChatService) AppendExchange(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	uid := c.Param("id")

	request := &AppendExchangeRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	turns, err := exchangeTurns(request)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{UID: &uid, UserID: &userID})
	if err != nil {
		return chatStoreError(err, uid)
	}

	if err := s.Store.AppendTurns(ctx, &store.AppendTurns{
		ConversationUID: uid,
		UserID:          userID,
		Turns:           turns,
		UpdatedTs:       time.Now().Unix(),
	}); err != nil {
		return chatStoreError(err, uid)
	}

	// The first completed exchange grows the history past its initial
	// single user turn. That is the moment the fallback title gets
	// replaced with a summarized one, off the request path.
	if len(conversation.History) == 1 {
		s.TitleUpdater.Schedule(uid, conversation.History[0].Text())
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *ChatService) SwitchAssistant(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	uid := c.Param("id")

	request := &SwitchAssistantRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	assistant, err := ai.ParseAssistant(request.Assistant)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown assistant %q", request.Assistant))
	}

	assistantValue := string(assistant)
	now := time.Now().Unix()
	if err := s.Store.UpdateConversation(ctx, &store.UpdateConversation{
		ConversationUID: uid,
		UserID:          userID,
		Assistant:       &assistantValue,
		UpdatedTs:       &now,
	}); err != nil {
		return chatStoreError(err, uid)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *ChatService) DeleteChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	uid := c.Param("id")

	if err := s.Store.DeleteConversation(ctx, &store.DeleteConversation{
		ConversationUID: uid,
		UserID:          userID,
	}); err != nil {
		return chatStoreError(err, uid)
	}
	return c.NoContent(http.StatusNoContent)
}

// exchangeTurns converts an append request into store turns: an optional
// user turn followed by exactly one model turn. Dual-mode answers merge
// into a single model turn so the alternation the transcript renderer
// expects is preserved.
func exchangeTurns(request *AppendExchangeRequest) ([]store.Turn, error) {
	now := time.Now().Unix()
	var turns []store.Turn

	if text := strings.TrimSpace(request.Text); text != "" {
		parts := []store.Part{}
		if request.ImageRef != "" {
			parts = append(parts, store.Part{ImageRef: request.ImageRef})
		}
		parts = append(parts, store.Part{Text: text})
		turns = append(turns, store.Turn{Role: store.RoleUser, Parts: parts, CreatedTs: now})
	} else if request.ImageRef != "" {
		return nil, errors.New("imageRef requires text")
	}

	hasSingle := request.Answer != ""
	hasDual := request.TherapistAnswer != "" || request.FriendAnswer != ""
	switch {
	case hasSingle && hasDual:
		return nil, errors.New("answer and dual answers are mutually exclusive")
	case hasSingle:
		assistant := string(ai.AssistantTherapist)
		if request.Assistant != "" {
			parsed, err := ai.ParseAssistant(request.Assistant)
			if err != nil || parsed == ai.AssistantBoth {
				return nil, errors.Errorf("invalid assistant %q for a single answer", request.Assistant)
			}
			assistant = string(parsed)
		}
		turns = append(turns, store.Turn{
			Role:      store.RoleModel,
			Parts:     []store.Part{{Text: request.Answer}},
			Assistant: assistant,
			CreatedTs: now,
		})
	case request.TherapistAnswer != "" && request.FriendAnswer != "":
		merged := fmt.Sprintf("Therapist: %s\n\nFriend: %s", request.TherapistAnswer, request.FriendAnswer)
		turns = append(turns, store.Turn{
			Role:      store.RoleModel,
			Parts:     []store.Part{{Text: merged}},
			Assistant: string(ai.AssistantBoth),
			CreatedTs: now,
		})
	case hasDual:
		return nil, errors.New("dual answers require both therapistAnswer and friendAnswer")
	default:
		return nil, errors.New("answer is required")
	}

	return turns, nil
}

func convertConversation(conversation *store.Conversation) *ChatResponse {
	response := &ChatResponse{
		ID:        conversation.UID,
		Assistant: conversation.Assistant,
		CreatedTs: conversation.CreatedTs,
		UpdatedTs: conversation.UpdatedTs,
	}
	for _, turn := range conversation.History {
		parts := make([]PartResponse, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			parts = append(parts, PartResponse{Text: part.Text, ImageRef: part.ImageRef})
		}
		response.History = append(response.History, TurnResponse{
			Role:      string(turn.Role),
			Parts:     parts,
			Assistant: turn.Assistant,
			CreatedTs: turn.CreatedTs,
		})
	}
	return response
}

// chatStoreError maps store failures onto the HTTP error taxonomy: missing
// or foreign conversations are indistinguishable 404s, corrupted records
// are a 400 so clients do not retry them.
func chatStoreError(err error, uid string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("conversation %s not found", uid))
	case errors.Is(err, store.ErrInvalidConversation):
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("conversation %s is invalid", uid))
	default:
		slog.Error("conversation store failure", slog.String("conversation", uid), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "conversation store failure")
	}
}
