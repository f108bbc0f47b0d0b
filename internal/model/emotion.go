package model

// EmotionTypeEmoji 表情类型，目前只有 emoji
const EmotionTypeEmoji = 0

// Emotion 用户常用表情表
// 同一用户的表情总是整组替换，没有单条修改
type Emotion struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  string `gorm:"type:varchar(64);index:idx_emotion_user_sort,priority:1;not null" json:"user_id"`
	Content string `gorm:"type:varchar(128);not null" json:"content"`
	Sort    int    `gorm:"index:idx_emotion_user_sort,priority:2;not null" json:"sort"` // 从0开始，保留用户提交的顺序
	Type    int    `gorm:"not null;default:0" json:"type"`
}

func (Emotion) TableName() string {
	return "emotion"
}
