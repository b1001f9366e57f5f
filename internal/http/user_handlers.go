package http

import (
	"github.com/gin-gonic/gin"

	"energytrack/internal/apperr"
	"energytrack/internal/service"
)

type userRequest struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Status   string `json:"status"`
}

func (r userRequest) input() service.UserInput {
	return service.UserInput{
		ID:       r.ID,
		Username: r.Username,
		Password: r.Password,
		Role:     r.Role,
		Email:    r.Email,
		Phone:    r.Phone,
		Status:   r.Status,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type updateInfoRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) register(c *gin.Context) {
	var req userRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, userToResponse(*user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	entryFor(c, h.logger).WithField("username", res.User.Username).Info("user logged in")
	ok(c, LoginResponse{Token: res.Token, User: userToResponse(*res.User)})
}

func (h *Handler) addUser(c *gin.Context) {
	var req userRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.users.Add(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	var req userRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.users.Update(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, err := idValue(c.Param("id"), "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "删除成功")
}

func (h *Handler) searchUsers(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	users, err := h.users.Search(c.Request.Context(), c.Query("username"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, pageToResponse(users, userToResponse))
}

func (h *Handler) listUsers(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	users, err := h.users.List(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, pageToResponse(users, userToResponse))
}

func (h *Handler) userInfo(c *gin.Context) {
	rc, _ := requestContext(c)
	user, err := h.users.Info(c.Request.Context(), rc)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, userToResponse(*user))
}

func (h *Handler) updateUserInfo(c *gin.Context) {
	var req updateInfoRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rc, _ := requestContext(c)
	if _, err := h.users.UpdateInfo(c.Request.Context(), rc, req.Email, req.Phone); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		h.fail(c, apperr.Newf(apperr.CodeParamValid, "密码不能为空"))
		return
	}
	rc, _ := requestContext(c)
	if err := h.users.ChangePassword(c.Request.Context(), rc, req.OldPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, nil)
}
