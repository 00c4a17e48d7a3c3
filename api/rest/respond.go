package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/quest"
	"gorm.io/gorm"
)

// Error codes that are not validation rejections.
const (
	CodeNoActiveChallenge = "NoActiveChallenge"
	CodeNotFound          = "NotFound"
	CodeConflict          = "Conflict"
	CodeCollaborator      = "CollaboratorFailure"
	CodeStore             = "StoreFailure"
	CodeBadRequest        = "BadRequest"
)

// statusOf maps an engine error to an HTTP status and error code.
func statusOf(err error) (int, string) {
	var collab *quest.CollaboratorError
	switch {
	case errors.Is(err, challenge.ErrNoActiveChallenge):
		return http.StatusNotFound, CodeNoActiveChallenge
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, quest.ErrUnknownQuest):
		return http.StatusNotFound, quest.Reason(err)
	case errors.Is(err, quest.ErrInputMissing):
		return http.StatusUnprocessableEntity, quest.Reason(err)
	case quest.IsRejection(err):
		return http.StatusConflict, quest.Reason(err)
	case errors.As(err, &collab):
		if collab.AlreadyCompleted {
			return http.StatusConflict, CodeCollaborator
		}
		return http.StatusBadGateway, CodeCollaborator
	case errors.Is(err, challenge.ErrConflict):
		return http.StatusConflict, CodeConflict
	}
	return http.StatusInternalServerError, CodeStore
}

// respondError writes err as a JSON error body. Store failures are not
// echoed to the client.
func respondError(c *gin.Context, err error) {
	status, code := statusOf(err)
	body := gin.H{"error": err.Error(), "code": code}

	var collab *quest.CollaboratorError
	switch {
	case errors.As(err, &collab):
		body["error"] = collab.Message
		body["kind"] = collab.Kind
		body["already_completed"] = collab.AlreadyCompleted
	case code == CodeConflict:
		body["retryable"] = true
	case code == CodeStore:
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": CodeBadRequest})
}
