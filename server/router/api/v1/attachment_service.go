package v1

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/anastasijaprogramer/chatgpt-clone/internal/profile"
	"github.com/anastasijaprogramer/chatgpt-clone/server/auth"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

const (
	uploadTokenDuration = 10 * time.Minute
	maxUploadBytes      = 10 << 20
	thumbnailMaxSize    = 512
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type AttachmentService struct {
	Store   *store.Store
	Profile *profile.Profile
	Secret  string

	thumbnailSemaphore *semaphore.Weighted
}

type UploadCredentials struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
	ExpiresAt int64  `json:"expiresAt"`
}

type UploadResponse struct {
	Ref string `json:"ref"`
}

type uploadClaims struct {
	Token string `json:"token"`
	jwt.RegisteredClaims
}

// IssueUploadCredentials hands the client a one-shot signed grant it must
// present with the actual upload. The signature binds the token to the
// requesting user so grants cannot be replayed across accounts.
func (s *AttachmentService) IssueUploadCredentials(c echo.Context) error {
	userID := auth.UserID(c)

	token := uuid.NewString()
	expiresAt := time.Now().Add(uploadTokenDuration)
	claims := &uploadClaims{
		Token: token,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signature, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		slog.Error("failed to sign upload credentials", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue upload credentials")
	}

	return c.JSON(http.StatusOK, &UploadCredentials{
		Token:     token,
		Signature: signature,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (s *AttachmentService) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	if err := s.verifyUploadGrant(c, userID); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds upload limit")
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	ext, ok := allowedImageTypes[mimeType]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unsupported image type %q", mimeType))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	ref := uuid.NewString()
	attachmentDir := filepath.Join(s.Profile.Data, "attachments")
	if err := os.MkdirAll(attachmentDir, 0770); err != nil {
		slog.Error("failed to create attachment directory", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}
	filePath := filepath.Join(attachmentDir, ref+ext)
	size, err := writeFile(filePath, src)
	if err != nil {
		slog.Error("failed to write upload", slog.String("path", filePath), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}

	thumbnailPath, err := s.generateThumbnail(ctx, filePath, attachmentDir, ref)
	if err != nil {
		// A missing thumbnail only degrades previews. Keep the original.
		slog.Warn("thumbnail generation failed", slog.String("ref", ref), slog.Any("error", err))
		thumbnailPath = ""
	}

	attachment, err := s.Store.CreateAttachment(ctx, &store.Attachment{
		UID:           ref,
		UserID:        userID,
		Filename:      fileHeader.Filename,
		MimeType:      mimeType,
		FilePath:      filePath,
		ThumbnailPath: thumbnailPath,
		Size:          size,
		CreatedTs:     time.Now().Unix(),
	})
	if err != nil {
		slog.Error("failed to record attachment", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}

	return c.JSON(http.StatusCreated, &UploadResponse{Ref: attachment.UID})
}

func (s *AttachmentService) ServeImage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	ref := c.Param("ref")

	attachment, err := s.Store.GetAttachment(ctx, &store.FindAttachment{UID: &ref, UserID: &userID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("image %s not found", ref))
		}
		slog.Error("attachment store failure", slog.String("ref", ref), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "attachment store failure")
	}

	path := attachment.FilePath
	if c.QueryParam("thumbnail") == "1" && attachment.ThumbnailPath != "" {
		path = attachment.ThumbnailPath
	}
	c.Response().Header().Set(echo.HeaderContentType, attachment.MimeType)
	return c.File(path)
}

func (s *AttachmentService) verifyUploadGrant(c echo.Context, userID string) error {
	token := c.FormValue("token")
	signature := c.FormValue("signature")
	if token == "" || signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "upload credentials are required")
	}

	claims := &uploadClaims{}
	_, err := jwt.ParseWithClaims(signature, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.Secret), nil
	})
	if err != nil || claims.Token != token || claims.Subject != userID {
		return echo.NewHTTPError(http.StatusForbidden, "invalid upload credentials")
	}
	return nil
}

// generateThumbnail renders a bounded preview next to the original. The
// semaphore caps concurrent decodes since large images are memory-hungry.
func (s *AttachmentService) generateThumbnail(ctx context.Context, filePath, dir, ref string) (string, error) {
	if err := s.thumbnailSemaphore.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.thumbnailSemaphore.Release(1)

	img, err := imaging.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode image")
	}
	thumbnail := imaging.Fit(img, thumbnailMaxSize, thumbnailMaxSize, imaging.Lanczos)
	thumbnailPath := filepath.Join(dir, ref+"_thumb.jpg")
	if err := imaging.Save(thumbnail, thumbnailPath, imaging.JPEGQuality(80)); err != nil {
		return "", errors.Wrap(err, "failed to save thumbnail")
	}
	return thumbnailPath, nil
}

func writeFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	return io.Copy(dst, src)
}
