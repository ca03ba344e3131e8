package http

import (
	"encoding/json"
	"net/http"

	"github.com/noaione/klibrarian/internal/handler/http/response"
)

type AuthHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
}

type authHandlerImpl struct {
	token string
}

func NewAuthHandler(token string) AuthHandler {
	return &authHandlerImpl{token: token}
}

// Login implements AuthHandler - checks the admin panel token
func (h *authHandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format")
		return
	}

	if req.Token != h.token {
		response.Unauthorized(w, "Invalid token")
		return
	}

	response.SuccessEmpty(w)
}
