package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/awnhealth/scheduling-engine/internal/therapist"
)

func listTherapistsHandler(dir therapist.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapists, err := dir.List(r.Context(), true)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		count := len(therapists)
		writeJSON(w, http.StatusOK, Response{Success: true, Data: therapists, Count: &count})
	}
}

func getTherapistHandler(dir therapist.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		param := chi.URLParam(r, "idOrSlug")

		var (
			t   *therapist.Therapist
			err error
		)
		if id, parseErr := uuid.Parse(param); parseErr == nil {
			t, err = dir.GetByID(r.Context(), id)
		} else {
			t, err = dir.GetBySlug(r.Context(), param)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeData(w, http.StatusOK, "", t)
	}
}
