package storage

import (
	"io"
	"time"
)

// Vault 定义了受根目录保护的本地物理存储操作接口
// 所有路径参数都是相对存储根的逻辑路径（"/" 分隔），解析结果越出根目录的操作
// 一律以 xerr.ErrPathViolation 失败，绝不重试
type Vault interface {
	// Root 返回存储根的绝对路径
	Root() string
	// Resolve 把逻辑路径解析为根目录下的绝对路径
	Resolve(rel string) (string, error)

	// 目录操作
	CreateDirectory(rel string) error
	// DeleteDirectory 递归删除目录，拒绝删除存储根自身
	DeleteDirectory(rel string) error
	// MoveDirectory 先创建目标父目录，再原子重命名
	MoveDirectory(oldRel, newRel string) error

	// 文件操作
	// WriteFile 以临时文件+重命名的方式流式写入
	WriteFile(rel string, r io.Reader) (int64, error)
	// CopyIn 把暂存区（根目录之外）的文件拷贝进存储根
	CopyIn(stagingPath, dstRel string) (int64, error)
	// CopyFile 在存储根内部复制文件（版本还原使用）
	CopyFile(srcRel, dstRel string) error
	// ReadFile 打开文件用于顺序或随机读取，调用方负责 Close
	// 遇到权限类错误时执行降级策略：拷贝到临时区后从副本提供读取
	ReadFile(rel string) (*Object, error)
	// Unlink 删除单个文件，对象已不存在时视为成功
	Unlink(rel string) error

	Exists(rel string) (bool, error)
}

// Object 是一次物理读取的结果
// Reader 支持 Seek，满足 HTTP Range 请求；使用完必须 Close
type Object struct {
	Reader  io.ReadSeekCloser
	Size    int64
	ModTime time.Time
	// Scratch 为 true 表示内容来自降级拷贝的临时副本，Close 时会清理
	Scratch bool
}

// Close 关闭底层读取器，临时副本会被一并删除
func (o *Object) Close() error {
	return o.Reader.Close()
}
