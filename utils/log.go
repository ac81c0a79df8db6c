package utils

import (
	"log"
	"strings"
	"unicode"

	"github.com/anoixa/asset-store/config"
)

func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogValue 截断并清理来自请求的字符串（实体 ID、文件名等）
func SanitizeLogValue(v string) string {
	if len(v) > 64 {
		v = v[:64] + "..."
	}
	return SanitizeLogMessage(v)
}

// LogIfDev 仅在开发环境输出
func LogIfDev(v ...interface{}) {
	if config.IsDevelopment() {
		log.Println(v...)
	}
}

// LogIfDevf 仅在开发环境输出
func LogIfDevf(format string, v ...interface{}) {
	if config.IsDevelopment() {
		log.Printf(format, v...)
	}
}
