/*
Package handler provides HTTP handler functions for avatar image storage.

Avatars go to S3-compatible storage via presigned URLs; image bytes never pass
through this server.
*/
package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindease/internal/pkg/auth/jwt"
	"mindease/internal/pkg/errs"
	"mindease/internal/pkg/logx"
	"mindease/internal/pkg/req"
	"mindease/internal/pkg/resp"
)

// PresignedURLDuration is the validity window of avatar presigned URLs.
const PresignedURLDuration = 15 * time.Minute

// MaxAvatarSize caps avatar uploads at 5 MiB.
const MaxAvatarSize = 5 << 20

// allowedAvatarTypes maps the accepted image MIME types to their extensions.
var allowedAvatarTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// PresignAvatarInput defines the JSON input structure for generating an avatar upload URL.
type PresignAvatarInput struct {
	FileName string `json:"file_name" validate:"required"`
	MimeType string `json:"mime_type" validate:"required"`
	FileSize int64  `json:"file_size" validate:"required,gt=0"`
}

// HandlePresignAvatarUpload creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for uploading the caller's avatar image.
func HandlePresignAvatarUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.AvatarStorage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarStorageFailed))
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if _, ok := allowedAvatarTypes[input.MimeType]; !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnsupportedMediaType))
			return
		}

		if input.FileSize > MaxAvatarSize {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		fileExt := strings.ToLower(filepath.Ext(input.FileName))
		fileKey := fmt.Sprintf("avatars/%s/%s%s", identity.UserID, uuid.New().String(), fileExt)

		url, err := deps.AvatarStorage.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarStorageFailed))
			return
		}

		data := map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// ConfirmAvatarInput defines the JSON input structure for confirming a
// finished avatar upload.
type ConfirmAvatarInput struct {
	FileKey string `json:"fileKey" validate:"required"`
}

// HandleConfirmAvatarUpload records an uploaded avatar on the caller's
// profile. The object is verified in storage (it exists and is an image)
// before the user row is updated; the replaced object, if any, is deleted in
// the background.
func HandleConfirmAvatarUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.AvatarStorage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarStorageFailed))
			return
		}

		var input ConfirmAvatarInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		// Only keys presigned for this user are accepted.
		expectedPrefix := fmt.Sprintf("avatars/%s/", identity.UserID)
		if !strings.HasPrefix(input.FileKey, expectedPrefix) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		metadata, err := deps.AvatarStorage.GetObjectMetadata(r.Context(), input.FileKey)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if _, ok := allowedAvatarTypes[metadata["Content-Type"]]; !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnsupportedMediaType))
			return
		}

		previousKey, err := deps.Store.UpdateUserAvatar(r.Context(), identity.UserID, input.FileKey)
		if err != nil {
			logx.Error(err, "Failed to update avatar key", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if previousKey != "" && previousKey != input.FileKey {
			go func(k string) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := deps.AvatarStorage.Delete(ctx, k); err != nil {
					logx.Warn("Failed to delete replaced avatar object", "key", k)
				}
			}(previousKey)
		}

		resp.RespondSuccess(w, r, map[string]any{"avatarUrl": input.FileKey})
	}
}

// HandlePresignAvatarDownload creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for downloading an avatar image and redirects the caller to it.
func HandlePresignAvatarDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.AvatarStorage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarStorageFailed))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" || !strings.HasPrefix(fileKey, "avatars/") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		url, err := deps.AvatarStorage.PresignDownload(r.Context(), fileKey, PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
