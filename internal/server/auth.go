package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	sessionName   = "gradesim_session"
	keyEmail      = "email"
	keyRole       = "role"
	keyOAuthState = "oauth_state"
)

// NewGoogleOAuth returns the OAuth2 configuration for Google login with the
// profile and email scopes.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
}

// SessionUser is the identity kept in the session cookie.
type SessionUser struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "login not configured")
		return
	}

	session, _ := s.sessionStore.Get(r, sessionName)
	state := uuid.NewString()
	session.Values[keyOAuthState] = state
	if err := session.Save(r, w); err != nil {
		s.logger.Error("failed to save session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "login not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login/google", http.StatusFound)
		return
	}

	session, _ := s.sessionStore.Get(r, sessionName)
	want, _ := session.Values[keyOAuthState].(string)
	if want == "" || r.URL.Query().Get("state") != want {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	delete(session.Values, keyOAuthState)

	ctx := r.Context()
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "Google login failed")
		return
	}

	resp, err := s.oauth.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		s.logger.Warn("userinfo request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "Google login failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var info struct {
		Email string `json:"email"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&info) != nil || info.Email == "" {
		writeError(w, http.StatusBadRequest, "Google login failed")
		return
	}

	user, err := s.users.GetOrCreateUser(ctx, info.Email)
	if err != nil {
		s.logger.Error("failed to resolve user", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	session.Values[keyEmail] = user.Email
	session.Values[keyRole] = user.Role
	if err := session.Save(r, w); err != nil {
		s.logger.Error("failed to save session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("user logged in", slog.String("email", user.Email), slog.String("role", user.Role))
	http.Redirect(w, r, s.frontendURL, http.StatusFound)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionStore.Get(r, sessionName)
	email, _ := session.Values[keyEmail].(string)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	role, _ := session.Values[keyRole].(string)
	writeJSON(w, http.StatusOK, SessionUser{Email: email, Role: role})
}
