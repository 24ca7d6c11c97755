package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/model"
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// emptySegment is the 404 body of a segment that matched nothing.
type emptySegment struct {
	Average *float64 `json:"average_simulation_cost"`
	Matched int      `json:"matched_companies"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

// writeError maps err onto a status and body. Internal failures are logged
// here and never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch kind := model.ErrorKind(err); kind {
	case model.KindValidation, model.KindLookup:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: model.KindValidation, Detail: err.Error()})
	case model.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: kind})
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: model.KindInternal})
	}
}
