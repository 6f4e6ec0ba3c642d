package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
	oauthgoogle "golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/config"
	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

const tokenTTL = 72 * time.Hour

// AuthController handles local credentials, the OAuth flows and session
// lifecycle.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController wires the auth handlers.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

func githubOAuthConfig() *oauth2.Config {
	cfg := config.Get()
	return &oauth2.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.OAuthRedirectBase + "/api/v1/auth/github/callback",
		Scopes:       []string{"user:email"},
		Endpoint:     oauthgithub.Endpoint,
	}
}

func googleOAuthConfig() *oauth2.Config {
	cfg := config.Get()
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectBase + "/api/v1/auth/google/callback",
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     oauthgoogle.Endpoint,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

// Register creates a local credentials profile.
// POST /api/v1/auth/register
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "email and a password of at least 8 characters are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.Profile
	if err := a.db.First(&existing, "email = ?", email).Error; err == nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "email already registered")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Sugar.Errorf("register lookup failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "registration failed")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Sugar.Errorf("password hash failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "registration failed")
		return
	}

	profile := models.Profile{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Provider:     "local",
		PasswordHash: hash,
		Role:         bootstrapRole(email),
	}
	if err := a.db.Create(&profile).Error; err != nil {
		utils.Sugar.Errorf("register create failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "registration failed")
		return
	}

	a.issueSession(ctx, &profile)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies local credentials and issues a session token.
// POST /api/v1/auth/login
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "email and password are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var profile models.Profile
	err := a.db.First(&profile, "email = ? AND provider = ?", email, "local").Error
	if err != nil || !utils.CheckPassword(profile.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid email or password")
		return
	}

	a.issueSession(ctx, &profile)
}

// OAuthRedirect starts the provider flow with a single-use state token.
// GET /api/v1/auth/:provider
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	conf, ok := a.providerConfig(ctx.Param("provider"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40405, "unknown provider")
		return
	}

	state := utils.NewShareCode()
	utils.SaveState(state, 10*time.Minute)
	ctx.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// OAuthCallback exchanges the code, loads the provider identity, upserts the
// profile and redirects to the frontend with a session token.
// GET /api/v1/auth/:provider/callback
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	conf, ok := a.providerConfig(provider)
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40405, "unknown provider")
		return
	}

	if !utils.ConsumeState(ctx.Query("state")) {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "invalid oauth state")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()
	token, err := conf.Exchange(reqCtx, ctx.Query("code"))
	if err != nil {
		utils.Sugar.Warnf("oauth exchange failed provider=%s: %v", provider, err)
		utils.Error(ctx, http.StatusUnauthorized, 40112, "oauth exchange failed")
		return
	}

	identity, err := fetchIdentity(reqCtx, provider, conf, token)
	if err != nil {
		utils.Sugar.Warnf("oauth identity fetch failed provider=%s: %v", provider, err)
		utils.Error(ctx, http.StatusUnauthorized, 40113, "failed to load provider identity")
		return
	}

	profile, err := a.findOrCreateProfile(provider, identity)
	if err != nil {
		utils.Sugar.Errorf("oauth profile upsert failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "login failed")
		return
	}

	jwtToken, err := utils.GenerateToken(profile.ID, profile.Email, profile.Role, tokenTTL)
	if err != nil {
		utils.Sugar.Errorf("token issue failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "login failed")
		return
	}

	cfg := config.Get()
	ctx.Redirect(http.StatusFound, cfg.OAuthRedirectBase+"/auth/callback?token="+jwtToken)
}

// Me returns the caller's profile.
// GET /api/v1/auth/me
func (a *AuthController) Me(ctx *gin.Context) {
	userID := ctx.GetString(middleware.ContextUserID)

	var profile models.Profile
	if err := a.db.First(&profile, "id = ?", userID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40104, "account not found")
		return
	}
	utils.Success(ctx, profile)
}

// Logout revokes the presented token until its natural expiry.
// POST /api/v1/auth/logout
func (a *AuthController) Logout(ctx *gin.Context) {
	tokenString := ctx.GetString("token")
	if tokenString == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "missing bearer token")
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	if claims, err := utils.ParseToken(tokenString); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(tokenString, expiresAt)

	utils.Success(ctx, gin.H{"logged_out": true})
}

func (a *AuthController) providerConfig(provider string) (*oauth2.Config, bool) {
	switch provider {
	case "github":
		return githubOAuthConfig(), true
	case "google":
		return googleOAuthConfig(), true
	}
	return nil, false
}

func (a *AuthController) issueSession(ctx *gin.Context, profile *models.Profile) {
	token, err := utils.GenerateToken(profile.ID, profile.Email, profile.Role, tokenTTL)
	if err != nil {
		utils.Sugar.Errorf("token issue failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to issue session")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "profile": profile})
}

// providerIdentity is the subset of the provider's user info we persist.
type providerIdentity struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

func fetchIdentity(ctx context.Context, provider string, conf *oauth2.Config, token *oauth2.Token) (*providerIdentity, error) {
	client := conf.Client(ctx, token)

	switch provider {
	case "github":
		var u struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := getJSON(client, "https://api.github.com/user", &u); err != nil {
			return nil, err
		}
		if u.Email == "" {
			// Primary email is hidden unless asked for explicitly
			var emails []struct {
				Email   string `json:"email"`
				Primary bool   `json:"primary"`
			}
			if err := getJSON(client, "https://api.github.com/user/emails", &emails); err == nil {
				for _, e := range emails {
					if e.Primary {
						u.Email = e.Email
						break
					}
				}
			}
		}
		name := u.Name
		if name == "" {
			name = u.Login
		}
		return &providerIdentity{
			ID:        strconv.FormatInt(u.ID, 10),
			Email:     strings.ToLower(u.Email),
			Name:      name,
			AvatarURL: u.AvatarURL,
		}, nil

	case "google":
		var u struct {
			Sub     string `json:"sub"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := getJSON(client, "https://openidconnect.googleapis.com/v1/userinfo", &u); err != nil {
			return nil, err
		}
		return &providerIdentity{
			ID:        u.Sub,
			Email:     strings.ToLower(u.Email),
			Name:      u.Name,
			AvatarURL: u.Picture,
		}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// findOrCreateProfile matches by (provider, provider id) first, then adopts an
// existing row with the same email, and finally creates a fresh profile.
func (a *AuthController) findOrCreateProfile(provider string, id *providerIdentity) (*models.Profile, error) {
	var profile models.Profile
	err := a.db.First(&profile, "provider = ? AND provider_id = ?", provider, id.ID).Error
	if err == nil {
		updates := map[string]interface{}{}
		if id.Name != "" && id.Name != profile.Name {
			updates["name"] = id.Name
		}
		if id.AvatarURL != "" && id.AvatarURL != profile.AvatarURL {
			updates["avatar_url"] = id.AvatarURL
		}
		if len(updates) > 0 {
			if err := a.db.Model(&profile).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if id.Email != "" {
		err = a.db.First(&profile, "email = ?", id.Email).Error
		if err == nil {
			updates := map[string]interface{}{
				"provider":    provider,
				"provider_id": id.ID,
			}
			if id.AvatarURL != "" {
				updates["avatar_url"] = id.AvatarURL
			}
			if err := a.db.Model(&profile).Updates(updates).Error; err != nil {
				return nil, err
			}
			return &profile, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	profile = models.Profile{
		Email:      id.Email,
		Name:       id.Name,
		AvatarURL:  id.AvatarURL,
		Provider:   provider,
		ProviderID: id.ID,
		Role:       bootstrapRole(id.Email),
	}
	if err := a.db.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// bootstrapRole grants the admin role to configured emails so the first
// operator can reach the editor without manual database edits.
func bootstrapRole(email string) string {
	if email == "" {
		return models.RoleUser
	}
	for _, admin := range config.Get().AdminEmails {
		if strings.EqualFold(admin, email) {
			return models.RoleAdmin
		}
	}
	return models.RoleUser
}
