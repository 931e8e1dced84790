package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/talktome/internal/messaging"
	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/model"
)

// heartbeatInterval はSSE接続維持のためのコメント送信間隔。
// 中間プロキシのアイドルタイムアウトによる切断を防ぐ。
const heartbeatInterval = 30 * time.Second

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// Send はメッセージを送信する。
	Send(ctx context.Context, senderID, recipientID, content string) (*model.Message, error)
	// History はユーザーが関与するメッセージを新しい順で返す。
	History(ctx context.Context, userID string) ([]*model.Message, error)
	// Conversation は2者間のメッセージを古い順で返し、相手からの未読を既読にする。
	Conversation(ctx context.Context, userID, counterpartID string) ([]*model.Message, error)
	// UnreadCounts は未読メッセージ数を送信者別に返す。
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
}

// MessageHandler はメッセージングのHTTPハンドラー。
// リアルタイム配信（SSE）も担う。
type MessageHandler struct {
	service       MessageServiceInterface
	hub           *messaging.Hub
	authenticator middleware.Authenticator
}

// NewMessageHandler はMessageHandlerを生成する。
// authenticatorはSSEエンドポイントのクエリパラメータ認証に使用する。
func NewMessageHandler(service MessageServiceInterface, hub *messaging.Hub, authenticator middleware.Authenticator) *MessageHandler {
	return &MessageHandler{
		service:       service,
		hub:           hub,
		authenticator: authenticator,
	}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// Send はメッセージ送信を処理する。
// POST /api/message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	message, err := h.service.Send(r.Context(), session.UserID, req.RecipientID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toMessageResponse(message))
}

// History はユーザーが関与するメッセージ履歴を返す。
// GET /api/messages
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	messages, err := h.service.History(r.Context(), session.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toMessageResponses(messages))
}

// Conversation は指定相手との会話を返す。相手からの未読は既読になる。
// GET /api/messages/{counterpartId}
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	counterpartID := chi.URLParam(r, "counterpartId")
	if counterpartID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("相手のユーザーIDを指定してください"))
		return
	}

	messages, err := h.service.Conversation(r.Context(), session.UserID, counterpartID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toMessageResponses(messages))
}

// UnreadCounts は送信者別の未読メッセージ数を返す。
// GET /api/unread-messages
func (h *MessageHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	counts, err := h.service.UnreadCounts(r.Context(), session.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, counts)
}

// Events は認証済みユーザー宛てのリアルタイムイベントをSSEで配信する。
// EventSourceはカスタムヘッダーを設定できないため、
// X-Session-Idヘッダーに加えて?token=クエリパラメータでの認証も受け付ける。
// GET /api/events
func (h *MessageHandler) Events(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.SessionHeaderName)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	session, err := h.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	sub := h.hub.Subscribe(session.UserID)
	defer h.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// 接続確立を即座にクライアントへ伝える
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-sub.C:
			payload, err := json.Marshal(toMessageResponse(event.Message))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
