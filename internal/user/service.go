package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/pkg/apperr"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MinPasswordLength 是注册时允许的最短密码长度。
const MinPasswordLength = 6

// RegisterInput 是注册请求的数据。
type RegisterInput struct {
	Username        string `json:"username" binding:"required,min=3,max=30,alphanum"`
	Email           string `json:"email" binding:"required,email"`
	DisplayName     string `json:"displayName" binding:"max=50"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

// UpdateInput 是资料更新请求，nil 字段保持不变。
type UpdateInput struct {
	DisplayName    *string   `json:"displayName" binding:"omitempty,max=50"`
	Avatar         *string   `json:"avatar" binding:"omitempty,max=2048"`
	Banner         *string   `json:"banner" binding:"omitempty,max=2048"`
	Bio            *string   `json:"bio" binding:"omitempty,max=500"`
	Location       *string   `json:"location" binding:"omitempty,max=100"`
	Website        *string   `json:"website" binding:"omitempty,max=2048"`
	IsPrivate      *bool     `json:"isPrivate"`
	FavoriteGenres *[]string `json:"favoriteGenres" binding:"omitempty,max=20"`
}

// Service 实现用户注册、登录和资料维护。
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService 创建用户服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ValidatePassword 校验密码长度以及两次输入是否一致。
func ValidatePassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("密码长度至少为%d位", MinPasswordLength))
	}
	if password != confirm {
		return apperr.Validation("两次输入的密码不一致")
	}
	return nil
}

// Register 创建一个新用户。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := ValidatePassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("无法计算密码哈希: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}

	now := s.now()
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}
	u := &User{
		ID:             id.String(),
		Username:       username,
		Email:          email,
		PasswordHash:   string(hash),
		DisplayName:    displayName,
		FavoriteGenres: []string{},
		JoinedAt:       now,
		LastActiveAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("email = ? OR username = ?", email, username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("用户名或邮箱已被注册")
		}
		return tx.Create(u).Error
	})
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("用户名或邮箱已被注册")
		}
		return nil, err
	}
	return u, nil
}

// Login 校验邮箱和密码，成功后刷新最近活跃时间。
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Authentication("邮箱或密码错误")
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Authentication("邮箱或密码错误")
	}

	u.LastActiveAt = s.now()
	if err := s.db.WithContext(ctx).Model(&u).UpdateColumn("last_active_at", u.LastActiveAt).Error; err != nil {
		return nil, fmt.Errorf("无法更新最近活跃时间: %w", err)
	}
	return &u, nil
}

// Get 按ID查找用户。
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return FindByID(s.db.WithContext(ctx), userID)
}

// GetBy 按 userId / email / username 中第一个非空的条件查找用户。
func (s *Service) GetBy(ctx context.Context, userID, email, username string) (*User, error) {
	q := s.db.WithContext(ctx)
	switch {
	case userID != "":
		return FindByID(q, userID)
	case email != "":
		q = q.Where("email = ?", strings.ToLower(email))
	case username != "":
		q = q.Where("username = ?", username)
	default:
		return nil, apperr.Validation("需要 userId、email 或 username 之一")
	}
	var u User
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("用户不存在")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// Search 按用户名或昵称前缀查找用户。
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Summary{}, nil
	}
	pattern := escapeLike(strings.ToLower(query)) + "%"
	var users []User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(display_name) LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("follower_count DESC").Order("username").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("搜索用户失败: %w", err)
	}
	out := make([]Summary, len(users))
	for i := range users {
		out[i] = users[i].Summary()
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Update 修改用户资料，计数字段不受影响。
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*User, error) {
	updates := map[string]any{"last_active_at": s.now()}
	if in.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*in.DisplayName)
	}
	if in.Avatar != nil {
		updates["avatar"] = *in.Avatar
	}
	if in.Banner != nil {
		updates["banner"] = *in.Banner
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if in.Website != nil {
		updates["website"] = *in.Website
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}
	if in.FavoriteGenres != nil {
		updates["favorite_genres"] = datatypes.JSONSlice[string](*in.FavoriteGenres)
	}

	var u *User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("更新用户资料失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("用户不存在")
		}
		var err error
		u, err = FindByID(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
