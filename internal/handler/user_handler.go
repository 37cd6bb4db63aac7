package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/userbase/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Create はユーザーを作成する。username/emailの重複はmodel.DuplicateFieldErrorを返す。
	Create(ctx context.Context, input model.NewUserInput) (*model.User, error)
	// FindOneByUsername はusernameを大文字小文字を区別せずに検索する。
	FindOneByUsername(ctx context.Context, username string) (*model.User, error)
	// Update はusernameで特定したユーザーを部分更新する。
	Update(ctx context.Context, username string, patch model.UserPatch) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// createUserRequest はユーザー作成リクエストのボディ。
type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// updateUserRequest は部分更新リクエストのボディ。省略されたフィールドは変更しない。
type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。passwordはハッシュ値。
type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Create はユーザーを作成する。
// POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if apiErr := validateNewUser(req); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), model.NewUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

// Get はusernameでユーザーを取得する。
// GET /api/v1/users/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username, apiErr := usernameFromPath(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	found, err := h.service.FindOneByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(found))
}

// Update はusernameで特定したユーザーを部分更新する。
// PATCH /api/v1/users/{username}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	username, apiErr := usernameFromPath(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if apiErr := validatePatch(req); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	updated, err := h.service.Update(r.Context(), username, model.UserPatch{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// --- ヘルパー関数 ---

// usernameFromPath はパスの{username}を取り出す。
// 不正なUTF-8を含む場合は検証エラーを返す。
func usernameFromPath(r *http.Request) (string, *model.APIError) {
	username := chi.URLParam(r, "username")
	if !utf8.ValidString(username) {
		return "", model.NewValidationError("usernameに不正な文字が含まれています")
	}
	return username, nil
}

func validateNewUser(req createUserRequest) *model.APIError {
	if apiErr := validateUsername(req.Username); apiErr != nil {
		return apiErr
	}
	if apiErr := validateEmail(req.Email); apiErr != nil {
		return apiErr
	}
	return validatePassword(req.Password)
}

func validatePatch(req updateUserRequest) *model.APIError {
	if req.Username != nil {
		if apiErr := validateUsername(*req.Username); apiErr != nil {
			return apiErr
		}
	}
	if req.Email != nil {
		if apiErr := validateEmail(*req.Email); apiErr != nil {
			return apiErr
		}
	}
	if req.Password != nil {
		return validatePassword(*req.Password)
	}
	return nil
}

func validateUsername(username string) *model.APIError {
	if strings.TrimSpace(username) == "" {
		return model.NewValidationError("usernameは必須です")
	}
	if utf8.RuneCountInString(username) > model.MaxUsernameLength {
		return model.NewValidationError(fmt.Sprintf("usernameは%d文字以内で指定してください", model.MaxUsernameLength))
	}
	return nil
}

func validateEmail(email string) *model.APIError {
	if strings.TrimSpace(email) == "" {
		return model.NewValidationError("emailは必須です")
	}
	if utf8.RuneCountInString(email) > model.MaxEmailLength {
		return model.NewValidationError(fmt.Sprintf("emailは%d文字以内で指定してください", model.MaxEmailLength))
	}
	if !strings.Contains(email, "@") {
		return model.NewValidationError("emailの形式が不正です")
	}
	return nil
}

func validatePassword(password string) *model.APIError {
	if password == "" {
		return model.NewValidationError("passwordは必須です")
	}
	if len(password) > model.MaxPasswordLength {
		return model.NewPasswordTooLongError()
	}
	return nil
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
