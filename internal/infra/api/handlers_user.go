package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/infra/logging"
	"homeaura-subscription/internal/infra/metrics"
	"homeaura-subscription/internal/usecase"
)

type registerRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6,max=72"`
	Phone          string `json:"phone" validate:"required,min=7,max=20"`
	SecondaryPhone string `json:"secondaryPhone" validate:"omitempty,min=7,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

// handleRegister creates a regular user. Admins are provisioned with cmd/seed.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	usr, err := s.userUC.Register(r.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    model.Phone{Primary: req.Phone, Secondary: req.SecondaryPhone},
		Role:     model.RoleUser,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncUsersRegistered()
	s.issueToken(w, r, http.StatusCreated, usr)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	usr, err := s.userUC.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issueToken(w, r, http.StatusOK, usr)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, status int, usr *model.User) {
	tok, err := s.auth.Mint(usr.ID, usr.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.With(logging.WithUserID(r.Context(), usr.ID), s.log).Info().Msg("token issued")
	writeJSON(w, status, authResponse{User: toUserView(usr), Token: tok})
}

// handleContact runs behind RequireSubscription; RevealContact re-checks the
// gate so the use case stays safe when called from elsewhere.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	if ownerID == "" {
		s.writeError(w, r, domain.ErrValidation)
		return
	}
	c, err := s.userUC.RevealContact(r.Context(), userIDFrom(r.Context()), ownerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleContactPreview(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	if ownerID == "" {
		s.writeError(w, r, domain.ErrValidation)
		return
	}
	c, err := s.userUC.PreviewContact(r.Context(), ownerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
