package handler

import (
	"mindease/internal/app/chat"
	"mindease/internal/app/storage"
	"mindease/internal/app/store"
	"mindease/internal/configs"
)

// AppDeps bundles the shared dependencies handlers need. AvatarStorage is nil
// when storage is not configured (development without S3 credentials).
type AppDeps struct {
	Config        *configs.AppConfig
	Store         *store.Store
	Hub           *chat.Hub
	AvatarStorage storage.AvatarStorage
}
