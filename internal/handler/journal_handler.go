/*
Package handler provides HTTP handler functions for the private journal.
*/
package handler

import (
	"errors"
	"net/http"

	"mindease/internal/app/chat"
	"mindease/internal/pkg/auth/jwt"
	"mindease/internal/pkg/errs"
	"mindease/internal/pkg/logx"
	"mindease/internal/pkg/resp"
)

// HandleListJournal returns the caller's journal entries, newest first.
func HandleListJournal(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		entries, err := deps.Store.ListJournalEntries(r.Context(), identity.UserID)
		if err != nil {
			if errors.Is(err, chat.ErrPermissionDenied) {
				resp.RespondError(w, r, errs.NewError(errs.ErrPermissionDenied))
				return
			}
			logx.Error(err, "Failed to list journal entries", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"entries": entries})
	}
}
