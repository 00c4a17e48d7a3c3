package rest_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/sevenday/challenge/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_PersonaChangesEligibility(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, "u1", nil)

	w := h.complete(t, "u1", "ff_builder", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPut, "/api/profile", "u1", map[string]string{"persona": "builder", "stage": "integrate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Instance model.ChallengeInstance `json:"instance"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "builder", resp.Instance.Persona)
	assert.Equal(t, "integrate", resp.Instance.CurrentStage)

	var profiles int64
	require.NoError(t, h.db.Model(&model.Profile{}).Count(&profiles).Error)
	assert.Zero(t, profiles)
}

func TestProfile_NameWithoutChallenge(t *testing.T) {
	h := newHarness(t, 0)
	w := h.do(t, http.MethodPut, "/api/profile", "u1", map[string]string{"name": "  Sam Lee ", "persona": "builder"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p model.Profile
	require.NoError(t, h.db.First(&p, "user_id = ?", "u1").Error)
	assert.Equal(t, "Sam Lee", p.Name)
}

func TestProfile_Validation(t *testing.T) {
	h := newHarness(t, 0)

	w := h.do(t, http.MethodPut, "/api/profile", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/api/profile", "u1", map[string]string{"name": strings.Repeat("x", 200)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/api/profile", "u1", map[string]string{"persona": "builder"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
