package cache

import (
	"context"
	"fmt"
	"time"
)

// 缓存通用接口
type Cache interface {
	// Set在缓存中设置一个值，并指定过期时间。
	// value应该是一个可以被JSON封送的结构体或指向结构体的指针。
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get从缓存中检索一个值，并将其解编组到目标接口。
	// target应该是一个指针，指向希望解编组成的类型。
	Get(ctx context.Context, key string, target any) error

	// 删除一个或多个key
	Del(ctx context.Context, keys ...string) error

	// 检查key是否存在
	Exists(ctx context.Context, key string) (bool, error)

	Expire(ctx context.Context, key string, expiration time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// GenerateFileMetadataKey 单个文件元数据的缓存键
func GenerateFileMetadataKey(fileID uint64) string {
	return fmt.Sprintf("file:metadata:%d", fileID)
}

// GenerateFolderFilesKey 目录下当前版本文件列表的缓存键
func GenerateFolderFilesKey(folderID uint64) string {
	return fmt.Sprintf("files:folder:%d", folderID)
}

// GenerateLineageKey 某个文件版本链的缓存键，originID 是版本 1 的文件 ID
func GenerateLineageKey(originID uint64) string {
	return fmt.Sprintf("file:lineage:%d", originID)
}

// GenerateHashKey 按内容哈希查找文件的缓存键
func GenerateHashKey(folderID uint64, hash string) string {
	return fmt.Sprintf("file:hash:%d:%s", folderID, hash)
}
