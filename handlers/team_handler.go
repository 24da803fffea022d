package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playoff-app/playoff-backend/middleware"
	"github.com/playoff-app/playoff-backend/services"
)

const maxLogoSize = 5 << 20 // 5MB

type TeamHandler struct {
	service services.MembershipService
}

func NewTeamHandler(service services.MembershipService) *TeamHandler {
	return &TeamHandler{service: service}
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.CreateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.CaptainEmail = email

	team, err := h.service.CreateTeam(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	teamName := chi.URLParam(r, "teamName")

	player, err := h.service.JoinTeam(r.Context(), email, teamName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	teamName := chi.URLParam(r, "teamName")

	if err := h.service.LeaveTeam(r.Context(), email, teamName); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) SetPlaying(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	teamName := chi.URLParam(r, "teamName")

	var input services.SetPlayingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.service.SetPlaying(r.Context(), email, teamName, input.Playing); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"playing": input.Playing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamName := chi.URLParam(r, "teamName")

	team, err := h.service.GetTeam(r.Context(), teamName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"teams": teams}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	teamName := chi.URLParam(r, "teamName")

	members, err := h.service.ListTeamMembers(r.Context(), teamName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"players": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TeamHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerName := chi.URLParam(r, "playerName")

	player, err := h.service.GetPlayer(r.Context(), playerName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadLogo accepts the raw image body; the Content-Type header names the
// image format.
func (h *TeamHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	teamName := chi.URLParam(r, "teamName")

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := http.MaxBytesReader(w, r.Body, maxLogoSize)
	defer body.Close()

	team, err := h.service.UploadTeamLogo(r.Context(), teamName, email, contentType, body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
