package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/services"
)

const (
	msgRegistered         = "User registered successfully."
	msgRequirementsNotMet = "Username/password do not meet requirements"
	msgCreateFailed       = "Error creating user"
	msgInvalidCredentials = "Invalid credentials"
	msgAuthenticated      = "Authentication successful"

	maxBodyBytes = 1 << 20
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	service          services.AuthServiceProvider
	exposeViolations bool
}

// NewAuthHandler creates a new AuthHandler. exposeViolations adds the list of
// failed rules to 400 responses.
func NewAuthHandler(service services.AuthServiceProvider, exposeViolations bool) *AuthHandler {
	return &AuthHandler{service: service, exposeViolations: exposeViolations}
}

// CredentialsPayload is the body accepted by Register and Login.
type CredentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type validationResponse struct {
	Message    string             `json:"message"`
	Violations []apperr.Violation `json:"violations,omitempty"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	payload := decodeCredentials(w, r)

	_, err := h.service.Register(r.Context(), payload.Username, payload.Password, remoteIP(r))
	if err == nil {
		writeMessage(w, http.StatusCreated, msgRegistered)
		return
	}

	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := validationResponse{Message: msgRequirementsNotMet}
		if h.exposeViolations {
			resp.Violations = verr.Violations
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, validationResponse{Message: msgRequirementsNotMet})
	case errors.Is(err, apperr.ErrConflict):
		writeMessage(w, http.StatusConflict, msgCreateFailed)
	default:
		respondError(w, r, err, "Failed to register user")
	}
}

// Login handles user authentication and token issuance.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	payload := decodeCredentials(w, r)

	res, err := h.service.Login(r.Context(), payload.Username, payload.Password, remoteIP(r))
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		respondError(w, r, err, "Failed to log in user")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, Message: msgAuthenticated})
}

// decodeCredentials reads a JSON or form-encoded body. A body that cannot be
// decoded yields empty credentials, which then fail validation.
func decodeCredentials(w http.ResponseWriter, r *http.Request) CredentialsPayload {
	var payload CredentialsPayload
	if r.Body == nil {
		return payload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			hlog.FromRequest(r).Debug().Err(err).Msg("Unreadable form body")
			return payload
		}
		payload.Username = r.PostForm.Get("username")
		payload.Password = r.PostForm.Get("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			hlog.FromRequest(r).Debug().Err(err).Msg("Unreadable JSON body")
			return CredentialsPayload{}
		}
	}
	return payload
}
