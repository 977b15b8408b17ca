package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/fjfoyain/reservation-boss/internal/storage"
)

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"无错误", nil, false},
		{"普通错误", errors.New("connection refused"), false},
		{"业务错误不重试", storage.ErrSpotTaken, false},
		{"PostgreSQL 序列化失败", errors.New("ERROR: could not serialize access due to read/write dependencies among transactions (SQLSTATE 40001)"), true},
		{"MySQL 死锁", errors.New("Error 1213 (40001): Deadlock found when trying to get lock; try restarting transaction"), true},
		{"PostgreSQL 唯一键冲突原文", errors.New(`ERROR: duplicate key value violates unique constraint "uniq_reservations_date_spot" (SQLSTATE 23505)`), true},
		{"MySQL 唯一键冲突原文", errors.New("Error 1062 (23000): Duplicate entry '2026-03-04-a@northhighland.com' for key 'uniq_reservations_date_email'"), true},
		{"唯一键冲突", gorm.ErrDuplicatedKey, true},
		{"包装后的唯一键冲突", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isWriteConflict(tt.err))
		})
	}
}

func TestTranslateConflict(t *testing.T) {
	t.Run("日期加车位索引冲突映射为车位已占用", func(t *testing.T) {
		err := errors.New(`ERROR: duplicate key value violates unique constraint "uniq_reservations_date_spot" (SQLSTATE 23505)`)
		assert.ErrorIs(t, translateConflict(err), storage.ErrSpotTaken)
	})

	t.Run("日期加邮箱索引冲突映射为重复预订", func(t *testing.T) {
		err := errors.New(`ERROR: duplicate key value violates unique constraint "uniq_reservations_date_email" (SQLSTATE 23505)`)
		assert.ErrorIs(t, translateConflict(err), storage.ErrDuplicateDayBooking)
	})

	t.Run("统一后的唯一键冲突默认按车位已占用处理", func(t *testing.T) {
		assert.ErrorIs(t, translateConflict(gorm.ErrDuplicatedKey), storage.ErrSpotTaken)
	})

	t.Run("非冲突错误原样返回", func(t *testing.T) {
		err := errors.New("connection refused")
		assert.Equal(t, err, translateConflict(err))
		assert.NoError(t, translateConflict(nil))
	})

	t.Run("业务错误不被改写", func(t *testing.T) {
		assert.ErrorIs(t, translateConflict(storage.ErrDuplicateDayBooking), storage.ErrDuplicateDayBooking)
	})
}
