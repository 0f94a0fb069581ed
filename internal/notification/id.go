package notification

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID は通知IDを採番する。
// ミリ秒タイムスタンプとランダムな接尾辞を組み合わせ、同一ミリ秒内でも衝突しない。
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}
