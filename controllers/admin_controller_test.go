package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

func adminRouter(db *gorm.DB) *gin.Engine {
	ac := NewAdminController(db, utils.NewCache(nil))
	router := gin.New()
	group := router.Group("/api/v1/admin", middleware.AuthRequired(), middleware.AdminRequired(db))
	group.POST("/problems", ac.CreateProblem)
	group.GET("/problems", ac.ListProblems)
	group.GET("/problems/:id", ac.GetProblem)
	group.PUT("/problems/:id", ac.UpdateProblem)
	group.PATCH("/problems/:id", ac.PatchProblem)
	group.DELETE("/problems/:id", ac.DeleteProblem)
	return router
}

func validProblemBody() map[string]interface{} {
	return map[string]interface{}{
		"title": "Two trains",
		"question_blocks": []map[string]string{
			{"type": "markdown", "content": "Two trains leave the station..."},
		},
		"answer_blocks": []map[string]string{
			{"type": "markdown", "content": "They meet in the middle."},
		},
		"is_published": true,
	}
}

func TestAdminGateRejectsNonAdmins(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "player@example.com", models.RoleUser)
	router := adminRouter(db)

	code, nonAdminBody := doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", bearerFor(t, user), validProblemBody())
	if code != http.StatusUnauthorized {
		t.Fatalf("non-admin status = %d, want 401", code)
	}

	code, anonBody := doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", "", validProblemBody())
	if code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", code)
	}

	// A logged-in non-admin must be indistinguishable from an anonymous caller
	if nonAdminBody["code"] != anonBody["code"] || nonAdminBody["message"] != anonBody["message"] {
		t.Fatalf("rejection bodies differ: non-admin=%v anonymous=%v", nonAdminBody, anonBody)
	}
}

func TestAdminGateChecksDatabaseRole(t *testing.T) {
	db := setupDB(t)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	token := bearerFor(t, admin)
	router := adminRouter(db)

	// Token still says admin, database says otherwise
	if err := db.Model(&models.Profile{}).Where("id = ?", admin.ID).Update("role", models.RoleUser).Error; err != nil {
		t.Fatalf("demote admin: %v", err)
	}

	code, _ := doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", token, validProblemBody())
	if code != http.StatusUnauthorized {
		t.Fatalf("demoted admin status = %d, want 401", code)
	}
}

func TestCreateProblemValidation(t *testing.T) {
	db := setupDB(t)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	token := bearerFor(t, admin)
	router := adminRouter(db)

	body := validProblemBody()
	body["title"] = "  "
	code, _ := doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", token, body)
	if code != http.StatusBadRequest {
		t.Fatalf("blank title status = %d, want 400", code)
	}

	body = validProblemBody()
	body["question_blocks"] = []map[string]string{{"type": "video", "content": "not-a-url"}}
	code, _ = doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", token, body)
	if code != http.StatusBadRequest {
		t.Fatalf("bad media url status = %d, want 400", code)
	}

	body = validProblemBody()
	body["question_blocks"] = []map[string]string{}
	code, _ = doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", token, body)
	if code != http.StatusBadRequest {
		t.Fatalf("empty blocks status = %d, want 400", code)
	}

	body = validProblemBody()
	body["effect"] = "explode"
	code, _ = doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", token, body)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown effect status = %d, want 400", code)
	}

	code, envelope := doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", token, validProblemBody())
	if code != http.StatusOK {
		t.Fatalf("valid create status = %d: %v", code, envelope)
	}
	data := dataOf(t, envelope)
	if data["created_by"] != admin.ID {
		t.Fatalf("created_by = %v, want %s", data["created_by"], admin.ID)
	}
}

func TestCreateProblemSanitizesMarkdown(t *testing.T) {
	db := setupDB(t)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	router := adminRouter(db)

	body := validProblemBody()
	body["question_blocks"] = []map[string]string{
		{"type": "markdown", "content": `hello<script>alert("x")</script> world`},
	}
	code, envelope := doJSON(t, router, http.MethodPost, "/api/v1/admin/problems", bearerFor(t, admin), body)
	if code != http.StatusOK {
		t.Fatalf("status = %d: %v", code, envelope)
	}

	var stored models.Problem
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load problem: %v", err)
	}
	blocks, err := models.ParseBlocks(stored.QuestionBlocks)
	if err != nil {
		t.Fatalf("parse stored blocks: %v", err)
	}
	if got := blocks[0].Content; got != "hello world" {
		t.Fatalf("sanitized content = %q, want script stripped", got)
	}
}

func TestPatchProblemAllowList(t *testing.T) {
	db := setupDB(t)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	token := bearerFor(t, admin)
	router := adminRouter(db)
	problem := createProblem(t, db, "before", false)

	code, envelope := doJSON(t, router, http.MethodPatch, "/api/v1/admin/problems/"+problem.ID, token,
		map[string]interface{}{"is_published": true, "effect": "confetti", "created_by": "attacker"})
	if code != http.StatusOK {
		t.Fatalf("patch status = %d: %v", code, envelope)
	}

	var stored models.Problem
	if err := db.First(&stored, "id = ?", problem.ID).Error; err != nil {
		t.Fatalf("reload problem: %v", err)
	}
	if !stored.IsPublished || stored.Effect != models.EffectConfetti {
		t.Fatalf("patch not applied: %+v", stored)
	}
	if stored.Title != "before" {
		t.Fatalf("title changed to %q by partial patch", stored.Title)
	}
	if stored.CreatedBy != nil && *stored.CreatedBy == "attacker" {
		t.Fatalf("non-editable field created_by was patched")
	}

	code, _ = doJSON(t, router, http.MethodPatch, "/api/v1/admin/problems/"+problem.ID, token,
		map[string]interface{}{"created_by": "attacker"})
	if code != http.StatusBadRequest {
		t.Fatalf("patch with no editable fields status = %d, want 400", code)
	}
}

func TestDeleteProblem(t *testing.T) {
	db := setupDB(t)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	token := bearerFor(t, admin)
	router := adminRouter(db)
	problem := createProblem(t, db, "doomed", true)

	code, _ := doJSON(t, router, http.MethodDelete, "/api/v1/admin/problems/"+problem.ID, token, nil)
	if code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", code)
	}

	code, _ = doJSON(t, router, http.MethodDelete, "/api/v1/admin/problems/"+problem.ID, token, nil)
	if code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", code)
	}
}
