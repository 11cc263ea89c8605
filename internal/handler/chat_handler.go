/*
Package handler provides HTTP handler functions for the messaging REST surface.

The REST endpoints serve clients that do not hold a WebSocket session open: a
cold conversation load and a plain send. The WebSocket path in ws_handler.go is
the primary surface; these mirror its semantics over request/response.
*/
package handler

import (
	"errors"
	"net/http"

	"mindease/internal/app/chat"
	"mindease/internal/pkg/auth/jwt"
	"mindease/internal/pkg/errs"
	"mindease/internal/pkg/logx"
	"mindease/internal/pkg/req"
	"mindease/internal/pkg/resp"
)

// HandleGetConversations materializes and returns the caller's full
// conversation list from the flat message set.
func HandleGetConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		currentUser, err := deps.Store.GetUser(r.Context(), identity.UserID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		msgs, err := deps.Store.FetchMessagesInvolving(r.Context(), currentUser.ID)
		if err != nil {
			if errors.Is(err, chat.ErrPermissionDenied) {
				resp.RespondError(w, r, errs.NewError(errs.ErrPermissionDenied))
				return
			}
			logx.Error(err, "Failed to fetch messages for conversation load", "user_id", currentUser.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationsUnavailable))
			return
		}

		conversations, err := chat.Materialize(r.Context(), currentUser, msgs, deps.Store)
		if err != nil {
			logx.Error(err, "Failed to materialize conversations", "user_id", currentUser.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationsUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"conversations": conversations})
	}
}

// SendMessageInput defines the JSON input structure for sending a message.
type SendMessageInput struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Text       string `json:"text"`
}

// HandleSendMessage persists one message and publishes it to the receiver's
// live feed. Validation mirrors the session send path: text empty after
// trimming never reaches the store.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		trimmed, err := chat.ValidateText(input.Text)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrEmptyMessage):
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageEmpty))
			default:
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			}
			return
		}

		msg, err := deps.Store.SendMessage(r.Context(), identity.UserID, input.ReceiverID, trimmed)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrCounterpartyNotFound):
				resp.RespondError(w, r, errs.NewError(errs.ErrRecipientNotFound))
			case errors.Is(err, chat.ErrPermissionDenied):
				resp.RespondError(w, r, errs.NewError(errs.ErrPermissionDenied))
			default:
				logx.Error(err, "Message write rejected by store", "sender_id", identity.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrSendRejected))
			}
			return
		}

		deps.Hub.Publish(msg)

		resp.RespondSuccess(w, r, msg)
	}
}
