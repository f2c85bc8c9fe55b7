package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"fanradar/internal/model"
	"fanradar/internal/pkg"
	"fanradar/internal/repository"
	redisrepo "fanradar/internal/repository/redis"
)

type UserService struct {
	repo     UserDirectory
	sessions SessionStore
	tokens   *pkg.TokenIssuer
}

func NewUserService(repo UserDirectory, sessions SessionStore, tokens *pkg.TokenIssuer) *UserService {
	return &UserService{
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
	}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
		return nil, invalid("username", "must be 3 to 32 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil || len(email) > 64 {
		return nil, invalid("email", "invalid address")
	}
	if len(password) < 6 {
		return nil, invalid("password", "must be at least 6 characters")
	}

	hash, err := pkg.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username: username,
		Password: hash,
		Email:    email,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("username", "username or email already taken")
		}
		return nil, err
	}
	return user, nil
}

// Login 用户名或邮箱登录，access token 写入 redis，同一用户只保留最近一次登录
func (s *UserService) Login(ctx context.Context, username, password string) (*pkg.Pair, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !pkg.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID)
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.sessions.Delete(ctx, userID)
}

// Refresh 用 refresh token 换新的一对 token，旧 access token 随之失效
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, errors.Join(ErrUnauthenticated, err)
	}
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return s.issue(ctx, userID)
}

// Authenticate 校验 access token 且必须与 redis 中的一致，通过后续期
func (s *UserService) Authenticate(ctx context.Context, token string) (uint64, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return 0, errors.Join(ErrUnauthenticated, err)
	}
	current, err := s.sessions.Get(ctx, claims.UserID)
	if errors.Is(err, redisrepo.ErrTokenNotFound) {
		return 0, ErrUnauthenticated
	}
	if err != nil {
		return 0, err
	}
	if current != token {
		return 0, ErrUnauthenticated
	}
	if err := s.sessions.Extend(ctx, claims.UserID); err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func (s *UserService) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, entityErr(err, "user")
	}
	return user, nil
}

func (s *UserService) issue(ctx context.Context, userID uint64) (*pkg.Pair, error) {
	pair, err := s.tokens.GeneratePair(userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, userID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}
