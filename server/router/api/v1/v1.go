package v1

import (
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/anastasijaprogramer/chatgpt-clone/ai"
	"github.com/anastasijaprogramer/chatgpt-clone/internal/profile"
	"github.com/anastasijaprogramer/chatgpt-clone/server/auth"
	"github.com/anastasijaprogramer/chatgpt-clone/server/titleupdater"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

type APIV1Service struct {
	// Domain services
	ChatService       *ChatService
	GenerateService   *GenerateService
	AttachmentService *AttachmentService

	// Shared infra
	Profile      *profile.Profile
	Store        *store.Store
	Dispatcher   *ai.Dispatcher
	TitleUpdater *titleupdater.Updater
	Secret       string

	thumbnailSemaphore *semaphore.Weighted
}

func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, invoker ai.Invoker) *APIV1Service {
	dispatcher := ai.NewDispatcher(invoker)
	updater := titleupdater.New(
		store,
		ai.NewTitleGenerator(invoker),
		time.Duration(profile.TitleCooldown)*time.Second,
	)
	service := &APIV1Service{
		Secret:             secret,
		Profile:            profile,
		Store:              store,
		Dispatcher:         dispatcher,
		TitleUpdater:       updater,
		thumbnailSemaphore: semaphore.NewWeighted(3), // Limit concurrent thumbnail generations
	}

	service.ChatService = &ChatService{Store: store, TitleUpdater: updater}
	service.GenerateService = &GenerateService{Dispatcher: dispatcher}
	service.AttachmentService = &AttachmentService{
		Store:              store,
		Profile:            profile,
		Secret:             secret,
		thumbnailSemaphore: service.thumbnailSemaphore,
	}

	return service
}

// RegisterRoutes mounts all authenticated API routes on the echo server.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api", auth.Middleware(s.Secret))

	apiGroup.POST("/chats", s.ChatService.CreateChat)
	apiGroup.GET("/chats", s.ChatService.ListChats)
	apiGroup.GET("/chats/:id", s.ChatService.GetChat)
	apiGroup.PUT("/chats/:id", s.ChatService.AppendExchange)
	apiGroup.PATCH("/chats/:id/assistant", s.ChatService.SwitchAssistant)
	apiGroup.DELETE("/chats/:id", s.ChatService.DeleteChat)

	apiGroup.POST("/generate", s.GenerateService.Generate)

	apiGroup.GET("/upload", s.AttachmentService.IssueUploadCredentials)
	apiGroup.POST("/upload", s.AttachmentService.Upload)
	apiGroup.GET("/images/:ref", s.AttachmentService.ServeImage)
}
