package handlers

import (
	"errors"
	"net/http"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/utils"
)

// writeStateError maps state machine failures onto uniform HTTP responses.
func writeStateError(w http.ResponseWriter, err error) {
	if ite, ok := interview.AsInvalidTransition(err); ok {
		utils.JSON(w, http.StatusConflict, models.ErrorResponse{
			Code:    "invalid_transition",
			Message: ite.Error(),
			State:   ite.Current,
		})
		return
	}
	if errors.Is(err, interview.ErrImmutableState) {
		utils.JSON(w, http.StatusConflict, models.ErrorResponse{
			Code:    "immutable_state",
			Message: "Interview can no longer be modified",
		})
		return
	}
	if errors.Is(err, interview.ErrNotFound) {
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "not_found",
			Message: "Interview not found",
		})
		return
	}
	utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Code:    "internal_error",
		Message: "Something went wrong",
	})
}
