package handlers

import (
	"errors"
	"net/http"

	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/processors"
	"github.com/username/revoledger/src/security/validation"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
)

// sendServiceError maps service errors to a status code. Anything unknown is a 500 whose
// details stay in the log.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrDuplicateFile):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrParsingFailed),
		errors.Is(err, services.ErrInvalidManualPair),
		errors.Is(err, processors.ErrUnknownCheckbox),
		errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context()).Error("Internal error handling request", "method", r.Method, "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "An internal error occurred. Please try again later.", http.StatusInternalServerError)
	}
}
