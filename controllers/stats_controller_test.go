package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

func statsRouter(db *gorm.DB) *gin.Engine {
	sc := NewStatsController(db, utils.NewCache(nil))
	router := gin.New()
	group := router.Group("/api/v1/stats", middleware.AuthRequired())
	group.GET("/me", sc.GetMyStats)
	group.GET("/leaderboard", sc.GetLeaderboard)
	return router
}

func solveProblems(t *testing.T, db *gorm.DB, user *models.Profile, n int, reaction *string) {
	t.Helper()
	for i := 0; i < n; i++ {
		p := createProblem(t, db, "p", true)
		inter := models.Interaction{
			UserID:    user.ID,
			ProblemID: p.ID,
			VisibleID: utils.NewVisibleID(),
			Solved:    true,
			Reaction:  reaction,
		}
		if err := db.Create(&inter).Error; err != nil {
			t.Fatalf("create interaction: %v", err)
		}
	}
}

func TestLeaderboardOrdersBySolvedCount(t *testing.T) {
	db := setupDB(t)
	alice := createUser(t, db, "alice@example.com", models.RoleUser)
	bob := createUser(t, db, "bob@example.com", models.RoleUser)
	carol := createUser(t, db, "carol@example.com", models.RoleUser)

	dislike := models.ReactionDislike
	solveProblems(t, db, alice, 3, nil)
	solveProblems(t, db, bob, 1, &dislike)
	// carol attempted but never solved
	p := createProblem(t, db, "p", true)
	inter := models.Interaction{UserID: carol.ID, ProblemID: p.ID, VisibleID: utils.NewVisibleID()}
	if err := db.Create(&inter).Error; err != nil {
		t.Fatalf("create interaction: %v", err)
	}

	router := statsRouter(db)
	code, envelope := doJSON(t, router, http.MethodGet, "/api/v1/stats/leaderboard", bearerFor(t, alice), nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d: %v", code, envelope)
	}

	board := dataOf(t, envelope)["leaderboard"].([]interface{})
	if len(board) != 3 {
		t.Fatalf("got %d entries, want 3", len(board))
	}

	first := board[0].(map[string]interface{})
	if first["user_id"] != alice.ID || first["total_solved"].(float64) != 3 {
		t.Fatalf("rank 1 = %v, want alice with 3", first)
	}
	second := board[1].(map[string]interface{})
	if second["user_id"] != bob.ID || second["total_solved"].(float64) != 1 {
		t.Fatalf("rank 2 = %v, want bob with 1 despite dislike", second)
	}
	third := board[2].(map[string]interface{})
	if third["total_solved"].(float64) != 0 {
		t.Fatalf("rank 3 solved = %v, want 0", third["total_solved"])
	}
	if first["rank"].(float64) != 1 || second["rank"].(float64) != 2 {
		t.Fatalf("ranks not sequential: %v", board)
	}
}

func TestLeaderboardTiesBrokenByUserID(t *testing.T) {
	db := setupDB(t)
	a := createUser(t, db, "a@example.com", models.RoleUser)
	b := createUser(t, db, "b@example.com", models.RoleUser)
	solveProblems(t, db, a, 2, nil)
	solveProblems(t, db, b, 2, nil)

	lowID, highID := a.ID, b.ID
	if lowID > highID {
		lowID, highID = highID, lowID
	}

	router := statsRouter(db)
	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/stats/leaderboard", bearerFor(t, a), nil)
	board := dataOf(t, envelope)["leaderboard"].([]interface{})
	if len(board) != 2 {
		t.Fatalf("got %d entries, want 2", len(board))
	}
	if board[0].(map[string]interface{})["user_id"] != lowID {
		t.Fatalf("tie not broken by id: first = %v, want %s", board[0], lowID)
	}
	if board[1].(map[string]interface{})["user_id"] != highID {
		t.Fatalf("tie not broken by id: second = %v, want %s", board[1], highID)
	}
}

func TestGetMyStatsZeroFilledAndTotals(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "player@example.com", models.RoleUser)
	router := statsRouter(db)

	code, envelope := doJSON(t, router, http.MethodGet, "/api/v1/stats/me", bearerFor(t, user), nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d: %v", code, envelope)
	}
	data := dataOf(t, envelope)
	today := data["today"].(map[string]interface{})
	if today["problems_attempted"].(float64) != 0 || today["problems_solved"].(float64) != 0 {
		t.Fatalf("fresh user today = %v, want zeros", today)
	}
	if data["streak"].(float64) != 0 {
		t.Fatalf("fresh user streak = %v, want 0", data["streak"])
	}

	solveProblems(t, db, user, 2, nil)
	if err := bumpAttempted(db, user.ID); err != nil {
		t.Fatalf("bumpAttempted: %v", err)
	}

	_, envelope = doJSON(t, router, http.MethodGet, "/api/v1/stats/me", bearerFor(t, user), nil)
	data = dataOf(t, envelope)
	if data["total_solved"].(float64) != 2 {
		t.Fatalf("total_solved = %v, want 2", data["total_solved"])
	}
	if data["total_attempted"].(float64) != 2 {
		t.Fatalf("total_attempted = %v, want 2", data["total_attempted"])
	}
	if data["streak"].(float64) != 1 {
		t.Fatalf("streak = %v, want 1", data["streak"])
	}
}

func TestGetMyStatsStreakZeroWithoutTodayRow(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "player@example.com", models.RoleUser)
	router := statsRouter(db)

	// Active yesterday, nothing yet today
	seed := models.DailyStat{UserID: user.ID, Date: models.Yesterday(models.Today()), ProblemsAttempted: 2, ProblemsSolved: 1, Streak: 3}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed yesterday: %v", err)
	}

	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/stats/me", bearerFor(t, user), nil)
	data := dataOf(t, envelope)
	if data["streak"].(float64) != 0 {
		t.Fatalf("streak = %v with no today row, want zero-filled", data["streak"])
	}
	today := data["today"].(map[string]interface{})
	if today["problems_attempted"].(float64) != 0 || today["problems_solved"].(float64) != 0 {
		t.Fatalf("today = %v with no today row, want zeros", today)
	}
}

func TestGetMyStatsHistoryCappedAtSevenRows(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "player@example.com", models.RoleUser)
	router := statsRouter(db)

	for i := 0; i < 10; i++ {
		date := time.Now().AddDate(0, 0, -i).Format(models.DateLayout)
		seed := models.DailyStat{UserID: user.ID, Date: date, ProblemsAttempted: 1, Streak: 1}
		if err := db.Create(&seed).Error; err != nil {
			t.Fatalf("seed day %d: %v", i, err)
		}
	}

	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/stats/me", bearerFor(t, user), nil)
	history := dataOf(t, envelope)["history"].([]interface{})
	if len(history) != 7 {
		t.Fatalf("history has %d rows, want 7", len(history))
	}
	newest := history[0].(map[string]interface{})["date"].(string)
	if newest != models.Today() {
		t.Fatalf("history[0].date = %q, want newest first (%s)", newest, models.Today())
	}
}

func TestStatsRequireAuth(t *testing.T) {
	db := setupDB(t)
	router := statsRouter(db)
	code, _ := doJSON(t, router, http.MethodGet, "/api/v1/stats/me", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
}
