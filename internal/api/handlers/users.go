package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rohits-web03/vidtube/internal/api/middleware"
	"github.com/rohits-web03/vidtube/internal/api/services"
	"github.com/rohits-web03/vidtube/internal/apperror"
	"github.com/rohits-web03/vidtube/internal/assets"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rohits-web03/vidtube/internal/session"
	"github.com/rohits-web03/vidtube/internal/utils"
	"github.com/rohits-web03/vidtube/internal/validation"
)

// formMemory is how much of a multipart body is kept in memory before the
// rest spills to temporary files.
const formMemory = 1 << 20

type UserHandler struct {
	users         *services.UserService
	assets        *assets.Pipeline
	sessions      *session.Manager
	logger        logging.Logger
	maxUploadSize int64
}

func NewUserHandler(users *services.UserService, pipeline *assets.Pipeline, sessions *session.Manager, logger logging.Logger, maxUploadSize int64) *UserHandler {
	return &UserHandler{
		users:         users,
		assets:        pipeline,
		sessions:      sessions,
		logger:        logger,
		maxUploadSize: maxUploadSize,
	}
}

// Register godoc
// @Summary Register a new user
// @Description Creates an account from form fields and an avatar image (cover image optional)
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param fullName formData string true "Full name"
// @Param avatar formData file true "Avatar image"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} utils.Payload{data=models.User}
// @Failure 400 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /api/v1/users/register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(ctx, w, h.logger, apperror.NewValidation("Upload exceeds the size limit"))
			return
		}
		utils.WriteError(ctx, w, h.logger, apperror.NewValidation("Invalid registration form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	// staged files are gone before any response is written; the defer
	// covers panics
	batch, err := h.assets.Stage(r.MultipartForm, services.AvatarField, services.CoverImageField)
	defer batch.Cleanup(ctx)
	if err != nil {
		batch.Cleanup(ctx)
		utils.WriteError(ctx, w, h.logger, apperror.NewUpload("Failed to process uploaded files", err))
		return
	}

	in := validation.Registration{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		FullName: r.FormValue("fullName"),
	}
	user, err := h.users.Register(ctx, in, batch)
	batch.Cleanup(ctx)
	if err != nil {
		utils.WriteError(ctx, w, h.logger, err)
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Message: "User registered successfully",
		Data:    user,
	})
}

// Login godoc
// @Summary Log in
// @Description Authenticates by email or username and sets the session cookies
// @Tags Users
// @Accept json
// @Produce json
// @Param credentials body services.LoginInput true "Email or username, and password"
// @Success 200 {object} utils.Payload{data=services.LoginResult}
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/users/login [post]
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(r.Context(), w, h.logger, apperror.NewValidation("Invalid input"))
		return
	}

	res, err := h.users.Login(r.Context(), input)
	if err != nil {
		utils.WriteError(r.Context(), w, h.logger, err)
		return
	}

	h.sessions.Attach(w, res.AccessToken, res.RefreshToken)
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Message: "User logged in successfully",
		Data:    res,
	})
}

// Logout godoc
// @Summary Log out
// @Description Revokes the refresh token and clears the session cookies
// @Tags Users
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/users/logout [post]
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(r.Context(), w, h.logger, apperror.NewAuthentication("Unauthorized request"))
		return
	}

	if err := h.users.Logout(r.Context(), userID); err != nil {
		utils.WriteError(r.Context(), w, h.logger, err)
		return
	}

	h.sessions.Clear(w)
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Message: "User logged out successfully",
	})
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken godoc
// @Summary Refresh the session
// @Description Exchanges the current refresh token (cookie or body) for a new token pair
// @Tags Users
// @Accept json
// @Produce json
// @Param body body refreshInput false "Refresh token, when not sent as a cookie"
// @Success 200 {object} utils.Payload{data=auth.TokenPair}
// @Failure 401 {object} utils.Payload
// @Router /api/v1/users/refresh-token [post]
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := session.RefreshToken(r)
	if token == "" && r.Body != nil {
		var input refreshInput
		// an empty or malformed body simply leaves the token blank
		_ = json.NewDecoder(r.Body).Decode(&input)
		token = input.RefreshToken
	}

	pair, err := h.users.Refresh(r.Context(), token)
	if err != nil {
		utils.WriteError(r.Context(), w, h.logger, err)
		return
	}

	h.sessions.Attach(w, pair.AccessToken, pair.RefreshToken)
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Message: "Access token refreshed",
		Data:    pair,
	})
}

// CurrentUser godoc
// @Summary Current user
// @Tags Users
// @Produce json
// @Success 200 {object} utils.Payload{data=models.User}
// @Failure 401 {object} utils.Payload
// @Router /api/v1/users/current-user [get]
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(r.Context(), w, h.logger, apperror.NewAuthentication("Unauthorized request"))
		return
	}

	user, err := h.users.CurrentUser(r.Context(), userID)
	if err != nil {
		utils.WriteError(r.Context(), w, h.logger, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Message: "Current user fetched successfully",
		Data:    user,
	})
}
