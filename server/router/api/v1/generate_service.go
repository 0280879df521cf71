package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/anastasijaprogramer/chatgpt-clone/ai"
	"github.com/anastasijaprogramer/chatgpt-clone/server/auth"
	"github.com/anastasijaprogramer/chatgpt-clone/server/metrics"
)

type GenerateService struct {
	Dispatcher *ai.Dispatcher
}

type GenerateRequest struct {
	Prompt    string         `json:"prompt"`
	Assistant string         `json:"assistant"`
	History   []HistoryTurn  `json:"history,omitempty"`
	Image     *GenerateImage `json:"image,omitempty"`
}

type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type GenerateImage struct {
	InlineData string `json:"inlineData,omitempty"`
	MIMEType   string `json:"mimeType,omitempty"`
	URI        string `json:"uri,omitempty"`
}

type GenerateResponse struct {
	Mode string `json:"mode"`

	Text string          `json:"text,omitempty"`
	Raw  json.RawMessage `json:"raw,omitempty"`

	TherapistText string          `json:"therapistText,omitempty"`
	TherapistRaw  json.RawMessage `json:"therapistRaw,omitempty"`
	FriendText    string          `json:"friendText,omitempty"`
	FriendRaw     json.RawMessage `json:"friendRaw,omitempty"`
}

func (s *GenerateService) Generate(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	request := &GenerateRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	assistant, err := ai.ParseAssistant(request.Assistant)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown assistant %q", request.Assistant))
	}

	history := make([]ai.Turn, 0, len(request.History))
	for _, turn := range request.History {
		role := ai.Role(turn.Role)
		if role != ai.RoleUser && role != ai.RoleModel {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown history role %q", turn.Role))
		}
		history = append(history, ai.Turn{Role: role, Text: turn.Text})
	}
	var image *ai.ImageInput
	if request.Image != nil {
		image = &ai.ImageInput{
			InlineData: request.Image.InlineData,
			MIMEType:   request.Image.MIMEType,
			URI:        request.Image.URI,
		}
	}

	// All request validation happens before anything reaches the backend.
	segments, err := ai.AssembleContent(request.Prompt, history, image)
	if err != nil {
		if errors.Is(err, ai.ErrMissingPrompt) {
			return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	result, err := s.Dispatcher.Dispatch(ctx, assistant, segments)
	metrics.ObserveGeneration(string(assistant), start, err)
	if err != nil {
		slog.Error("generation failed",
			slog.String("user", userID),
			slog.String("assistant", string(assistant)),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, "generation backend failure")
	}

	return c.JSON(http.StatusOK, &GenerateResponse{
		Mode:          string(result.Mode),
		Text:          result.Text,
		Raw:           result.Raw,
		TherapistText: result.TherapistText,
		TherapistRaw:  result.TherapistRaw,
		FriendText:    result.FriendText,
		FriendRaw:     result.FriendRaw,
	})
}
