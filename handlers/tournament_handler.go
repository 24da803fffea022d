package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playoff-app/playoff-backend/middleware"
	"github.com/playoff-app/playoff-backend/services"
)

type TournamentHandler struct {
	service services.TournamentService
}

func NewTournamentHandler(service services.TournamentService) *TournamentHandler {
	return &TournamentHandler{service: service}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.TournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.service.Create(r.Context(), input, email)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")

	tournament, err := h.service.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListByLocation(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	tournaments, err := h.service.ListByLocation(r.Context(), location)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Update(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id := chi.URLParam(r, "tournamentID")

	var input services.TournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.service.Update(r.Context(), id, email, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id := chi.URLParam(r, "tournamentID")

	if err := h.service.Delete(r.Context(), id, email); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) Join(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id := chi.URLParam(r, "tournamentID")

	var input struct {
		TeamName string `json:"team_name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.service.Join(r.Context(), id, input.TeamName, email); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "team entered tournament"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Unjoin(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.GetUserEmailFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id := chi.URLParam(r, "tournamentID")

	var input struct {
		TeamName string `json:"team_name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.service.Unjoin(r.Context(), id, input.TeamName, email); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "team left tournament"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
