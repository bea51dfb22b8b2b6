package controllers

import (
	"net/http"
	"strings"

	"github.com/obinnaeze/pharmapos-backend/api/responses"
	"github.com/obinnaeze/pharmapos-backend/api/validators"
	auditsvc "github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
	"github.com/obinnaeze/pharmapos-backend/pkg/pagination"
)

// BatchAuditTrail pages through a batch's history, newest first.
func BatchAuditTrail(svc auditsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.BatchTrail(r.Context(), batchID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// ReferenceAuditTrail returns every record tied to one reference, e.g. all
// movements belonging to a single transfer.
func ReferenceAuditTrail(svc auditsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		referenceID, err := pathUUID(r, "referenceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ReferenceTrail(r.Context(), referenceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, records)
	}
}
