package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/auth"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/pkg/logger_i"
)

// Handler serves the HTTP surface on top of one App.
type Handler struct {
	app    *app.App
	logger *logger_i.Logger
}

func New(a *app.App) *Handler {
	return &Handler{app: a, logger: logger_i.NewLogger("RequestHandler")}
}

func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Login godoc
// @Summary      Log in
// @Description  Exchanges an email and password for a bearer token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      api.LoginRequest   true  "Credentials"
// @Success      200      {object}  api.LoginResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithTrace(r.Context(), config.TRACE_ID_KEY)
	defer closeBody(r.Body, log)

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		WriteErrorResponse(w, r, http.StatusBadRequest, "", "email and password are required")
		return
	}
	if !h.app.Users.Verify(req.Email, req.Password) {
		log.Warn("Login failed", "email", req.Email)
		WriteErrorResponse(w, r, http.StatusUnauthorized, "", "Invalid email or password")
		return
	}
	user, _ := h.app.Users.Get(req.Email)
	token, err := h.app.Tokens.Generate(user)
	if err != nil {
		log.Error("Could not issue token", "error", err)
		writeError(w, r, "", err)
		return
	}
	res := api.LoginResponse{Token: token, IsAdmin: user.IsAdmin}
	if ttl := h.app.Tokens.Expiry(); ttl > 0 {
		res.ExpiresAt = time.Now().Add(ttl).UTC()
	}
	log.Info("User logged in", "email", user.Email)
	writeJsonResponse(w, http.StatusOK, res)
}

// ChatHandler godoc
// @Summary      Ask a question
// @Description  Answers a question from the indexed documents. A new chat is created when chatID is empty.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.ChatRequest   true  "Message and optional chat ID"
// @Success      200      {object}  api.ChatResponse
// @Failure      400      {object}  api.ErrorResponse  "Empty message"
// @Failure      404      {object}  api.ErrorResponse  "Unknown chat ID"
// @Router       /chat [post]
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	if !validateContext(ctx, log) {
		return
	}
	defer closeBody(r.Body, log)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		log.Warn("Bad chat request", "error", err)
		WriteErrorResponse(w, r, http.StatusBadRequest, req.ChatID, "message is required")
		return
	}

	user := caller(ctx)
	chatId := req.ChatID
	if chatId == "" {
		chatId = utils.GetNewUUID()
		log.Debug("New chat", "chatId", chatId)
		if err := h.app.Chats.InitNewChat(ctx, chatId, user); err != nil {
			log.Error("Could not create chat", "chatId", chatId, "error", err)
			writeError(w, r, chatId, err)
			return
		}
	} else if !h.ownsChat(ctx, chatId, user) {
		WriteErrorResponse(w, r, http.StatusNotFound, chatId, "Chat not found")
		return
	}

	answer := h.app.RAG.Query(ctx, req.Message)

	turn := adapter.ToChatTurn(req.Message, answer)
	turn.Time = time.Now().UTC()
	if err := h.app.Chats.TrySaveChat(ctx, chatId, turn); err != nil {
		log.Warn("Could not save chat turn", "chatId", chatId, "error", err)
	}
	log.Info("Answered", "user", user, "chatId", chatId, "results", len(answer.Results), "usedModel", answer.UsedModel)
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(chatId, answer))
}

// GetChatHandler godoc
// @Summary      Get chat history
// @Description  Returns the most recent turns of a chat, oldest first.
// @Tags         Messaging
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Chat ID"
// @Success      200  {object}  api.ChatHistoryResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /chat/{id} [get]
func (h *Handler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.GetChiURLParam(r, "id")
	if !h.ownsChat(r.Context(), id, caller(r.Context())) {
		WriteErrorResponse(w, r, http.StatusNotFound, id, "Chat not found")
		return
	}
	turns, err := h.app.Chats.GetMessageHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, id, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatHistoryResponse(id, turns))
}

// GetStatusHandler godoc
// @Summary      Service status
// @Description  Reports the selected vector backend, collection metadata, whether an LLM is configured and the last ingestion run.
// @Tags         Status
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  api.StatusResponse
// @Router       /status [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, adapter.ToStatusResponse(h.app.Status(r.Context())))
}

// ownsChat is false both for unknown chats and for chats started by another user.
func (h *Handler) ownsChat(ctx context.Context, chatId, user string) bool {
	owner, ok := h.app.Chats.ChatOwner(ctx, chatId)
	return ok && owner == user
}

func caller(ctx context.Context) string {
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		return claims.Email
	}
	return ""
}

func closeBody(body io.ReadCloser, log *logger_i.Logger) {
	if err := body.Close(); err != nil {
		log.Error("Couldn't close the request body", "error", err)
	}
}
