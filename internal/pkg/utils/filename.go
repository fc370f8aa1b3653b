package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// 文件名和文件夹名允许的字符集，拦截路径分隔符和控制字符
var nameCharset = regexp.MustCompile(`^[\p{L}\p{N} ._()\-]+$`)

// 允许上传的扩展名及其 MIME 类型
var allowedMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".zip":  "application/zip",
}

// IsValidName 校验文件名/文件夹名是否合法
// 空名、以点开头结尾、包含路径分隔符或特殊字符的名字都被拒绝
func IsValidName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return nameCharset.MatchString(name)
}

// SplitExtension 把文件名拆分为主干和扩展名（扩展名含点，已转小写）
func SplitExtension(fileName string) (base, ext string) {
	lastDotIndex := strings.LastIndex(fileName, ".")
	if lastDotIndex <= 0 {
		return fileName, ""
	}
	return fileName[:lastDotIndex], strings.ToLower(fileName[lastDotIndex:])
}

// MimeTypeFor 根据扩展名返回 MIME 类型，不在允许列表内时 ok 为 false
func MimeTypeFor(fileName string) (mime string, ok bool) {
	_, ext := SplitExtension(fileName)
	mime, ok = allowedMimeTypes[ext]
	return mime, ok
}

// VersionedDisplayName 生成某个版本的展示文件名
// 版本 1 用原始名，版本 N 在主干后追加 (N-1)，如 report.pdf 的第 3 版是 report(2).pdf
func VersionedDisplayName(originalName string, version uint) string {
	if version <= 1 {
		return originalName
	}
	base, ext := SplitExtension(originalName)
	return fmt.Sprintf("%s(%d)%s", base, version-1, ext)
}

// ConflictSuffixName 生成带数字后缀的候选名，用于同目录命名冲突的重试
func ConflictSuffixName(fileName string, counter int) string {
	base, ext := SplitExtension(fileName)
	return fmt.Sprintf("%s (%d)%s", base, counter, ext)
}
