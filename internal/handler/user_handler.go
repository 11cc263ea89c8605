/*
Package handler provides HTTP handler functions for user directory lookups.
*/
package handler

import (
	"net/http"

	"mindease/internal/app/user"
	"mindease/internal/pkg/auth/jwt"
	"mindease/internal/pkg/errs"
	"mindease/internal/pkg/logx"
	"mindease/internal/pkg/resp"
)

// HandleListUsers lists users by role, for the contact picker. Students see
// counsellors and counsellors see students; the counterpart role is the
// default when none is requested.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		role := user.Role(r.URL.Query().Get("role"))
		if role == "" {
			role = user.Role(identity.Role).Counterpart()
		}
		if !role.Valid() {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		users, err := deps.Store.GetUsersByRole(r.Context(), role)
		if err != nil {
			logx.Error(err, "Failed to list users by role", "role", string(role))
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}

// HandleListCounsellors lists every counsellor, the directory students browse
// when starting a new conversation.
func HandleListCounsellors(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		counsellors, err := deps.Store.GetUsersByRole(r.Context(), user.RoleCounsellor)
		if err != nil {
			logx.Error(err, "Failed to list counsellors")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"counsellors": counsellors})
	}
}

// HandleGetCurrentUser returns the authenticated user's own profile.
func HandleGetCurrentUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		u, err := deps.Store.GetUser(r.Context(), identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}
