package domain

import "time"

// BaseTableName is the unprefixed name of the todo relation.
const BaseTableName = "todos"

// Todo is a single task owned by one user.
type Todo struct {
	ID          uint       `gorm:"primaryKey"`
	Content     string     `gorm:"type:text;not null"`
	Done        bool       `gorm:"not null"`
	TimeCreated time.Time  `gorm:"autoCreateTime;not null"`
	TimeDone    *time.Time // set while Done is true
	UserID      uint       `gorm:"not null;index"`
	Position    uint       `gorm:"not null"`
}

func (Todo) TableName() string {
	return BaseTableName
}

// TableFor returns the todo table of the tenant identified by prefix.
func TableFor(prefix string) string {
	return prefix + BaseTableName
}
