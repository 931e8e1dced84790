package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/talktome/internal/connection"
	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/model"
)

// ConnectionServiceInterface は接続ハンドラーが必要とするサービスインターフェース。
type ConnectionServiceInterface interface {
	// Connect はチューターと学習者の関係を確立する。
	Connect(ctx context.Context, initiatorID string, input connection.ConnectInput) error
	// ListConnections はユーザーの接続一覧を返す。
	ListConnections(ctx context.Context, userID string) (*connection.Connections, error)
}

// ConnectionHandler は接続管理のHTTPハンドラー。
type ConnectionHandler struct {
	service ConnectionServiceInterface
}

// NewConnectionHandler はConnectionHandlerを生成する。
func NewConnectionHandler(service ConnectionServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// connectRequest は接続リクエストのボディ。tutorIdとstudentIdは排他。
type connectRequest struct {
	TutorID   string `json:"tutorId"`
	StudentID string `json:"studentId"`
}

// connectionsResponse は接続一覧のAPIレスポンス。
type connectionsResponse struct {
	Tutors   []userResponse `json:"tutors"`
	Students []userResponse `json:"students"`
}

// Connect は接続確立を処理する。
// POST /api/connect
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	err = h.service.Connect(r.Context(), session.UserID, connection.ConnectInput{
		TutorID:   req.TutorID,
		StudentID: req.StudentID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "接続しました。"})
}

// ListConnections は接続一覧を返す。
// GET /api/connections
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conns, err := h.service.ListConnections(r.Context(), session.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, connectionsResponse{
		Tutors:   toUserResponses(conns.Tutors),
		Students: toUserResponses(conns.Students),
	})
}
