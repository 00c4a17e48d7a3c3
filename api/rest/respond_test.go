package rest

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/quest"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{challenge.ErrNoActiveChallenge, http.StatusNotFound, CodeNoActiveChallenge},
		{quest.ErrUnknownQuest, http.StatusNotFound, "UnknownQuest"},
		{quest.ErrInputMissing, http.StatusUnprocessableEntity, "InputMissing"},
		{fmt.Errorf("check: %w", quest.ErrDayZeroLocked), http.StatusConflict, "DayZeroLocked"},
		{quest.ErrAlreadyCompletedLifetime, http.StatusConflict, "AlreadyCompletedLifetime"},
		{quest.ErrMaxCompletionsReached, http.StatusConflict, "MaxCompletionsReached"},
		{&quest.CollaboratorError{Kind: "milestone", Message: "already shared", AlreadyCompleted: true}, http.StatusConflict, CodeCollaborator},
		{&quest.CollaboratorError{Kind: "groan", Message: "writer down"}, http.StatusBadGateway, CodeCollaborator},
		{challenge.ErrConflict, http.StatusConflict, CodeConflict},
		{&quest.StoreError{Op: "accept completion", Err: errors.New("disk full")}, http.StatusInternalServerError, CodeStore},
	}
	for _, tc := range cases {
		status, code := statusOf(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
