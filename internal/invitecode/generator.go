// Package invitecode 邀请码和导出任务ID的生成
package invitecode

import (
	"strings"

	"github.com/google/uuid"
)

const codeLength = 16

// Generator 生成邀请码，返回值对账本来说是不透明的字符串
type Generator interface {
	Generate(buyerID string) string
}

// UUIDGenerator 取随机 UUID 的前16位十六进制作为邀请码
type UUIDGenerator struct{}

func (UUIDGenerator) Generate(string) string {
	code := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(code[:codeLength])
}

// NewExportID 导出任务ID，作为 data_export 转账的 data_id
func NewExportID() string {
	return "export-" + uuid.NewString()
}
