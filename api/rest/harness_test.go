package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/api/rest"
	"github.com/sevenday/challenge/server/audit"
	"github.com/sevenday/challenge/server/board"
	"github.com/sevenday/challenge/server/challenge"
	"github.com/sevenday/challenge/server/config"
	"github.com/sevenday/challenge/server/hook"
	"github.com/sevenday/challenge/server/leaderboard"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/sevenday/challenge/server/model"
	"github.com/sevenday/challenge/server/notify"
	"github.com/sevenday/challenge/server/persona"
	"github.com/sevenday/challenge/server/quest"
	"github.com/sevenday/challenge/server/quest/questtest"
	"github.com/sevenday/challenge/server/reward"
	"github.com/sevenday/challenge/server/scheduler"
	"github.com/sevenday/challenge/server/streak"
	"github.com/sevenday/challenge/server/subflow"
	"github.com/sevenday/challenge/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSecret   = "rest-test-secret"
	testAdminKey = "admin-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	r     *gin.Engine
	db    *gorm.DB
	svc   *challenge.Service
	acc   *reward.Accountant
	sched *scheduler.Scheduler
	audit *audit.Service
}

// newHarness wires the full API over an in-memory store. A zero bonusDelay
// settles bonuses inline.
func newHarness(t *testing.T, bonusDelay time.Duration) *harness {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	catalog := questtest.Catalog(t)
	elig := quest.NewEligibility(catalog, persona.NewTable(nil))
	hooks := hook.NewCenter()
	inbox := notify.NewInbox(c, ps, 20, logger)
	inbox.Register(hooks)

	svc := challenge.NewService(db, catalog, logger)
	svc.SetStreakDetector(streak.NewDetector(db, logger))
	svc.SetNotifier(inbox)
	svc.SetSubflows(subflow.Default(db, logger))
	svc.SetGates(subflow.NewGates(db))
	svc.SetHooks(hooks)

	acc := reward.NewAccountant(db, catalog, elig, 0, logger)
	acc.SetHooks(hooks)
	builder := board.NewBuilder(elig, svc.Validator(), svc.Ledger(), acc)
	projector := leaderboard.NewProjector(db, c, time.Minute, logger)

	sched := scheduler.New(logger)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() {
		sched.Stop()
		auditSvc.Stop(context.Background())
	})

	chH := rest.NewChallengeHandler(svc, builder, acc, sched, auditSvc, bonusDelay, logger)
	lbH := rest.NewLeaderboardHandler(svc, projector)
	prH := rest.NewProfileHandler(svc, projector, hooks, logger)
	ntH := rest.NewNotificationHandler(inbox)
	adH := rest.NewAdminHandler(acc, sched, logger)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	api := r.Group("/api", mw.Auth(config.SecurityConfig{JWTSecret: testSecret}), mw.Timezone(time.UTC))
	api.POST("/challenge/start", chH.Start)
	api.GET("/challenge", chH.Load)
	api.GET("/challenge/artifacts", chH.Artifacts)
	api.POST("/challenge/bonus/:category", chH.Bonus)
	api.POST("/quests/:id/complete", chH.Complete)
	api.GET("/leaderboard", lbH.Get)
	api.PUT("/profile", prH.Update)
	api.GET("/notifications", ntH.List)
	api.DELETE("/notifications", ntH.Clear)

	admin := r.Group("/api/admin", rest.AdminAuth(testAdminKey))
	admin.GET("/challenges/:id/reconcile", adH.Reconcile)
	admin.GET("/scheduler", adH.ListSchedulerTasks)

	return &harness{r: r, db: db, svc: svc, acc: acc, sched: sched, audit: auditSvc}
}

func (h *harness) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := mw.GenerateToken(userID, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func (h *harness) admin(t *testing.T, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

// start begins a challenge for userID and returns its instance id.
func (h *harness) start(t *testing.T, userID string, body interface{}) int64 {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/challenge/start", userID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Instance model.ChallengeInstance `json:"instance"`
	}
	decode(t, w, &resp)
	return resp.Instance.ID
}

// rewind moves the instance's start and last active dates back by days so
// the next load advances it.
func (h *harness) rewind(t *testing.T, instanceID int64, days int) {
	t.Helper()
	past := time.Now().UTC().AddDate(0, 0, -days)
	require.NoError(t, h.db.Model(&model.ChallengeInstance{}).
		Where("id = ?", instanceID).
		Updates(map[string]interface{}{
			"challenge_start_date": past,
			"last_active_date":     past,
		}).Error)
}

func (h *harness) complete(t *testing.T, userID, questID string, in interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, http.MethodPost, "/api/quests/"+questID+"/complete", userID, in)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type errorBody struct {
	Error            string `json:"error"`
	Code             string `json:"code"`
	Retryable        bool   `json:"retryable"`
	AlreadyCompleted bool   `json:"already_completed"`
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorBody
	decode(t, w, &e)
	return e.Code
}
