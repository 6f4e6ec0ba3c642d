package controllers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

func shareRouter(db *gorm.DB) *gin.Engine {
	sc := NewShareController(db, utils.NewCache(nil))
	router := gin.New()
	router.POST("/api/v1/problems/share", middleware.AuthRequired(), sc.CreateShare)
	router.GET("/api/v1/share/:code", sc.GetShare)
	return router
}

func seedInteraction(t *testing.T, db *gorm.DB, user *models.Profile, problem *models.Problem, solved bool, seconds int) *models.Interaction {
	t.Helper()
	inter := models.Interaction{
		UserID:           user.ID,
		ProblemID:        problem.ID,
		VisibleID:        utils.NewVisibleID(),
		Solved:           solved,
		TimeSpentSeconds: seconds,
	}
	if solved {
		now := time.Now()
		inter.SolvedAt = &now
	}
	if err := db.Create(&inter).Error; err != nil {
		t.Fatalf("create interaction: %v", err)
	}
	return &inter
}

func TestCreateShareDerivesStatus(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "player@example.com", models.RoleUser)
	auth := bearerFor(t, user)
	problem := createProblem(t, db, "Tricky", true)
	router := shareRouter(db)

	cases := []struct {
		solved  bool
		seconds int
		gaveUp  bool
		want    string
	}{
		{true, 30, false, models.ShareSolvedFast},
		{true, 300, false, models.ShareSolved},
		{false, 0, true, models.ShareGaveUp},
		{false, 0, false, models.ShareUnsolved},
	}

	for _, tc := range cases {
		p := problem
		if tc.seconds != 30 {
			p = createProblem(t, db, "Tricky", true)
		}
		inter := seedInteraction(t, db, user, p, tc.solved, tc.seconds)

		code, envelope := doJSON(t, router, http.MethodPost, "/api/v1/problems/share", auth,
			map[string]interface{}{"interaction_id": inter.ID, "gave_up": tc.gaveUp})
		if code != http.StatusOK {
			t.Fatalf("share status = %d: %v", code, envelope)
		}
		data := dataOf(t, envelope)
		if data["status"] != tc.want {
			t.Fatalf("status = %v, want %s (solved=%v seconds=%d gaveUp=%v)",
				data["status"], tc.want, tc.solved, tc.seconds, tc.gaveUp)
		}
		msg := data["share_message"].(string)
		if tc.solved && !strings.Contains(msg, "Tricky") {
			t.Fatalf("solved message %q does not name the problem", msg)
		}
		if !tc.solved && !strings.Contains(msg, "stumped") {
			t.Fatalf("unsolved message = %q", msg)
		}
	}
}

func TestCreateShareRequiresOwnership(t *testing.T) {
	db := setupDB(t)
	owner := createUser(t, db, "owner@example.com", models.RoleUser)
	other := createUser(t, db, "other@example.com", models.RoleUser)
	problem := createProblem(t, db, "p", true)
	inter := seedInteraction(t, db, owner, problem, true, 10)
	router := shareRouter(db)

	code, _ := doJSON(t, router, http.MethodPost, "/api/v1/problems/share", bearerFor(t, other),
		map[string]interface{}{"interaction_id": inter.ID})
	if code != http.StatusNotFound {
		t.Fatalf("foreign share status = %d, want 404", code)
	}
}

func TestGetShareResolvesVisibleIDAndSnapshot(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "sharer@example.com", models.RoleUser)
	problem := createProblem(t, db, "Shared problem", true)
	inter := seedInteraction(t, db, user, problem, true, 42)
	router := shareRouter(db)

	// Live view via the interaction's visible id
	code, envelope := doJSON(t, router, http.MethodGet, "/api/v1/share/"+inter.VisibleID, "", nil)
	if code != http.StatusOK {
		t.Fatalf("visible id lookup status = %d: %v", code, envelope)
	}
	data := dataOf(t, envelope)
	if data["title"] != "Shared problem" {
		t.Fatalf("title = %v", data["title"])
	}
	if data["solved"] != true || data["time_spent_seconds"].(float64) != 42 {
		t.Fatalf("outcome = %v", data)
	}
	if data["sharer_name"] != "sharer" {
		t.Fatalf("sharer_name = %v", data["sharer_name"])
	}

	// Snapshot view via a share code
	_, envelope = doJSON(t, router, http.MethodPost, "/api/v1/problems/share", bearerFor(t, user),
		map[string]interface{}{"interaction_id": inter.ID})
	shareCode := dataOf(t, envelope)["share_code"].(string)

	code, envelope = doJSON(t, router, http.MethodGet, "/api/v1/share/"+shareCode, "", nil)
	if code != http.StatusOK {
		t.Fatalf("share code lookup status = %d: %v", code, envelope)
	}
	data = dataOf(t, envelope)
	if data["status"] != models.ShareSolvedFast {
		t.Fatalf("snapshot status = %v", data["status"])
	}
}

func TestGetShareHidesUnpublishedAndUnknown(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "sharer@example.com", models.RoleUser)
	problem := createProblem(t, db, "draft", false)
	inter := seedInteraction(t, db, user, problem, false, 0)
	router := shareRouter(db)

	code, _ := doJSON(t, router, http.MethodGet, "/api/v1/share/"+inter.VisibleID, "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unpublished share status = %d, want 404", code)
	}

	code, _ = doJSON(t, router, http.MethodGet, "/api/v1/share/nope", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown code status = %d, want 404", code)
	}
}
