package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"trackgate/internal/api/util"
)

const accessTokenTTL = 15 * time.Minute

type AuthHandler struct {
	secret   []byte
	user     string
	password string
}

// NewAuthHandler issues tokens to user/password. With an empty password
// any credentials are accepted, which is only meant for test setups.
func NewAuthHandler(secret, user, password string) *AuthHandler {
	return &AuthHandler{secret: []byte(secret), user: user, password: password}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "Username required", http.StatusBadRequest)
		return
	}
	if h.password != "" && !h.valid(req) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, err := util.GenerateToken(h.secret, req.Username, accessTokenTTL)
	if err != nil {
		http.Error(w, "Error generating token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(accessTokenTTL.Seconds()),
	})
}

func (h *AuthHandler) valid(req loginRequest) bool {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1
	return userOK && passOK
}
