package user

import (
	"errors"
	"fmt"

	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/gorm"
)

// AdjustCounter 在给定的事务中调整一个计数，结果不会低于0。
func AdjustCounter(tx *gorm.DB, userID string, col Counter, delta int) error {
	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", col), delta, delta)
	res := tx.Model(&User{}).Where("id = ?", userID).UpdateColumn(string(col), expr)
	if res.Error != nil {
		return fmt.Errorf("无法更新用户 %s 的 %s: %w", userID, col, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("用户不存在")
	}
	return nil
}

// SetAverageRating 写入重新计算后的平均评分。
func SetAverageRating(tx *gorm.DB, userID string, avg float64) error {
	err := tx.Model(&User{}).Where("id = ?", userID).UpdateColumn("average_rating", avg).Error
	if err != nil {
		return fmt.Errorf("无法更新用户 %s 的平均评分: %w", userID, err)
	}
	return nil
}

// FindByID 在给定的连接或事务中查找用户。
func FindByID(db *gorm.DB, userID string) (*User, error) {
	var u User
	if err := db.Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("用户不存在")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// Exists 判断用户是否存在。
func Exists(db *gorm.DB, userID string) (bool, error) {
	var count int64
	if err := db.Model(&User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询用户失败: %w", err)
	}
	return count > 0, nil
}

// Summaries 批量查询用户简要信息，按ID索引。
func Summaries(db *gorm.DB, ids []string) (map[string]Summary, error) {
	out := make(map[string]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []User
	err := db.Select("id", "username", "display_name", "avatar", "is_verified").
		Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("批量查询用户失败: %w", err)
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}
