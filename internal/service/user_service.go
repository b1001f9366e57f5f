package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"energytrack/internal/apperr"
	"energytrack/internal/auth"
	"energytrack/internal/domain"
	"energytrack/internal/repository"
)

const minPasswordLength = 6

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// TokenIssuer signs identity tokens for successful logins.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// UserInput carries the writable user fields. Password is optional on update.
type UserInput struct {
	ID       int64
	Username string
	Password string
	Role     string
	Email    string
	Phone    string
	Status   string
}

type LoginResult struct {
	Token string
	User  *domain.User
}

// UserService describes user lifecycle operations. It also serves as the
// identity store consulted by the auth middleware.
type UserService interface {
	Register(ctx context.Context, in UserInput) (*domain.User, error)
	Add(ctx context.Context, in UserInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Update(ctx context.Context, in UserInput) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, username string, page domain.PageRequest) (domain.Page[domain.User], error)
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.User], error)
	Info(ctx context.Context, rc *auth.RequestContext) (*domain.User, error)
	UpdateInfo(ctx context.Context, rc *auth.RequestContext, email, phone string) (*domain.User, error)
	ChangePassword(ctx context.Context, rc *auth.RequestContext, oldPassword, newPassword string) error
	ResolveIdentity(ctx context.Context, username string) (auth.Identity, error)
}

type userService struct {
	users  repository.UserRepository
	tokens TokenIssuer
}

func NewUserService(users repository.UserRepository, tokens TokenIssuer) UserService {
	return &userService{
		users:  users,
		tokens: tokens,
	}
}

// Register is the public sign-up path. Self-registered accounts are always
// enabled USER accounts regardless of what the caller sent.
func (s *userService) Register(ctx context.Context, in UserInput) (*domain.User, error) {
	in.Role = domain.RoleUser
	in.Status = domain.UserEnabled
	return s.create(ctx, in)
}

func (s *userService) Add(ctx context.Context, in UserInput) (*domain.User, error) {
	return s.create(ctx, in)
}

func (s *userService) create(ctx context.Context, in UserInput) (*domain.User, error) {
	in = trimUserInput(in)
	if err := validateUserInput(in, true); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		Status:       in.Status,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Newf(apperr.CodeUserExist, "用户名已存在: %s", in.Username)
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Newf(apperr.CodeFailedLogin, "用户名或密码错误")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeFailedLogin, "用户名或密码错误")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Newf(apperr.CodeFailedLogin, "用户名或密码错误")
	}
	if user.Status == domain.UserDisabled {
		return nil, apperr.New(apperr.CodeUserDisabled)
	}

	token, err := s.tokens.Issue(identityOf(user))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, User: sanitizeUser(user)}, nil
}

func (s *userService) Update(ctx context.Context, in UserInput) (*domain.User, error) {
	if in.ID <= 0 {
		return nil, apperr.Newf(apperr.CodeInvalidUserID, "用户ID不能为空")
	}
	user, err := s.users.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeUserNotFound, "用户不存在: %d", in.ID)
		}
		return nil, err
	}

	in = trimUserInput(in)
	if in.Username == "" {
		in.Username = user.Username
	}
	if in.Role == "" {
		in.Role = user.Role
	}
	if in.Status == "" {
		in.Status = user.Status
	}
	if err := validateUserInput(in, false); err != nil {
		return nil, err
	}

	user.Username = in.Username
	user.Email = in.Email
	user.Phone = in.Phone
	user.Role = in.Role
	user.Status = in.Status
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Newf(apperr.CodeUserExist, "用户名已存在: %s", in.Username)
		}
		return nil, err
	}

	if in.Password != "" {
		if err := s.setPassword(ctx, user.ID, in.Password); err != nil {
			return nil, err
		}
	}
	return sanitizeUser(user), nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Newf(apperr.CodeInvalidUserID, "用户ID不能为空")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Newf(apperr.CodeUserNotFound, "用户不存在: %d", id)
		}
		return err
	}
	return nil
}

func (s *userService) Search(ctx context.Context, username string, page domain.PageRequest) (domain.Page[domain.User], error) {
	users, total, err := s.users.SearchByUsername(ctx, strings.TrimSpace(username), page)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	if len(users) == 0 {
		return domain.Page[domain.User]{}, apperr.Newf(apperr.CodeNoDataFound, "未找到匹配的用户")
	}
	return domain.NewPage(page, sanitizeUsers(users), total), nil
}

func (s *userService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.User], error) {
	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	return domain.NewPage(page, sanitizeUsers(users), total), nil
}

func (s *userService) Info(ctx context.Context, rc *auth.RequestContext) (*domain.User, error) {
	user, err := s.current(ctx, rc)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// UpdateInfo lets the caller change their own contact details only.
func (s *userService) UpdateInfo(ctx context.Context, rc *auth.RequestContext, email, phone string) (*domain.User, error) {
	user, err := s.current(ctx, rc)
	if err != nil {
		return nil, err
	}
	in := trimUserInput(UserInput{Email: email, Phone: phone})
	if err := validateContact(in.Email, in.Phone); err != nil {
		return nil, err
	}
	user.Email = in.Email
	user.Phone = in.Phone
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, rc *auth.RequestContext, oldPassword, newPassword string) error {
	user, err := s.current(ctx, rc)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.New(apperr.CodeOldPasswordError)
	}
	if len(newPassword) < minPasswordLength {
		return apperr.Newf(apperr.CodeParamValid, "密码长度至少6位")
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

// ResolveIdentity looks up the token subject. A missing user is reported as
// auth.ErrUnknownSubject; any other failure is returned unchanged.
func (s *userService) ResolveIdentity(ctx context.Context, username string) (auth.Identity, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.Identity{}, fmt.Errorf("%w: %s", auth.ErrUnknownSubject, username)
		}
		return auth.Identity{}, err
	}
	return identityOf(user), nil
}

func (s *userService) current(ctx context.Context, rc *auth.RequestContext) (*domain.User, error) {
	if rc == nil || rc.UserID() <= 0 {
		return nil, apperr.New(apperr.CodeInvalidToken)
	}
	user, err := s.users.GetByID(ctx, rc.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NewAuth(apperr.CodeUserNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) setPassword(ctx context.Context, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, id, string(hash))
}

func trimUserInput(in UserInput) UserInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.TrimSpace(in.Role)
	in.Status = strings.TrimSpace(in.Status)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func validateUserInput(in UserInput, requirePassword bool) error {
	if in.Username == "" {
		return apperr.Newf(apperr.CodeParamValid, "用户名不能为空")
	}
	if requirePassword && in.Password == "" {
		return apperr.Newf(apperr.CodeParamValid, "密码不能为空")
	}
	if in.Password != "" && len(in.Password) < minPasswordLength {
		return apperr.Newf(apperr.CodeParamValid, "密码长度至少6位")
	}
	if in.Role == "" {
		return apperr.Newf(apperr.CodeParamValid, "角色不能为空")
	}
	if !domain.ValidRole(in.Role) {
		return apperr.Newf(apperr.CodeInvalidRole, "无效的角色: %s", in.Role)
	}
	if in.Status == "" {
		return apperr.Newf(apperr.CodeParamValid, "状态不能为空")
	}
	if !domain.ValidUserStatus(in.Status) {
		return apperr.Newf(apperr.CodeInvalidStatus, "无效的状态: %s", in.Status)
	}
	return validateContact(in.Email, in.Phone)
}

func validateContact(email, phone string) error {
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return apperr.Newf(apperr.CodeParamValid, "邮箱格式不正确")
		}
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		return apperr.Newf(apperr.CodeParamValid, "手机号格式不正确")
	}
	return nil
}

func identityOf(user *domain.User) auth.Identity {
	return auth.Identity{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Status:   user.Status,
	}
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}

func sanitizeUsers(users []domain.User) []domain.User {
	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *sanitizeUser(&users[i])
	}
	return out
}
