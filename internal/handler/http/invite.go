package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/noaione/klibrarian/internal/domain/invite"
	"github.com/noaione/klibrarian/internal/handler/http/response"
)

type InviteHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	Apply(w http.ResponseWriter, r *http.Request)
	Config(w http.ResponseWriter, r *http.Request)
	Info(w http.ResponseWriter, r *http.Request)
}

type inviteHandlerImpl struct {
	inviteService invite.InviteService
}

func NewInviteHandler(inviteService invite.InviteService) InviteHandler {
	return &inviteHandlerImpl{
		inviteService: inviteService,
	}
}

// Create implements InviteHandler - mints and stores a new invite token
func (h *inviteHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req invite.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format")
		return
	}

	result, err := h.inviteService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// List implements InviteHandler
func (h *inviteHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	results, err := h.inviteService.List(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if results == nil {
		results = []invite.Invite{}
	}
	response.Success(w, results)
}

// Get implements InviteHandler - public endpoint with lazy expiry purge
func (h *inviteHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := h.inviteService.Fetch(r.Context(), token)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Delete implements InviteHandler
func (h *inviteHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.inviteService.Delete(r.Context(), token); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessEmpty(w)
}

// Apply implements InviteHandler - public endpoint that redeems an invite
// and redirects the new user to the platform host
func (h *inviteHandlerImpl) Apply(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req invite.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format")
		return
	}

	host, err := h.inviteService.Redeem(r.Context(), token, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, map[string]string{"host": host})
}

// Config implements InviteHandler - collects invite options from the
// backing platforms for the admin create form
func (h *inviteHandlerImpl) Config(w http.ResponseWriter, r *http.Request) {
	result, err := h.inviteService.Config(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, err.Error())
		return
	}

	response.Success(w, result)
}

// Info implements InviteHandler
func (h *inviteHandlerImpl) Info(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.inviteService.Info(r.Context()))
}
