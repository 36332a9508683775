package types

import (
	"time"

	"github.com/google/uuid"
)

// DailyUsage tracks free-tier serves for one user on one UTC day.
// Reset is lazy: a read on a new day simply finds no row for that day.
type DailyUsage struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_daily_usage_user_day,unique" json:"user_id"`
	// Day is the UTC date in 2006-01-02 form.
	Day       string    `gorm:"column:day;not null;index:idx_daily_usage_user_day,unique" json:"day"`
	Used      int       `gorm:"column:used;not null;default:0" json:"used"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DailyUsage) TableName() string {
	return "daily_usage"
}

// AiPointsBudget is the paid-tier allowance for one billing period.
// Only scored submissions of nonzero-cost types consume it.
type AiPointsBudget struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_ai_points_user_period,unique" json:"user_id"`
	PeriodStart string    `gorm:"column:period_start;not null;index:idx_ai_points_user_period,unique" json:"period_start"`
	Used        int       `gorm:"column:used;not null;default:0" json:"used"`
	Limit       int       `gorm:"column:points_limit;not null" json:"limit"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AiPointsBudget) TableName() string {
	return "ai_points_budget"
}

func (b *AiPointsBudget) Remaining() int {
	if b == nil {
		return 0
	}
	r := b.Limit - b.Used
	if r < 0 {
		return 0
	}
	return r
}
