package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalVault 把逻辑目录树落在本地文件系统的一个固定根目录下
// 根目录和临时区在构造时注入，多个实例可以共存（测试时各用各的根）
type LocalVault struct {
	root    string
	scratch string
}

var _ Vault = (*LocalVault)(nil)

// NewLocalVault 创建一个以 root 为存储根的本地存储，目录不存在时自动创建
func NewLocalVault(root, scratch string) (*LocalVault, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}
	if scratch == "" {
		scratch = filepath.Join(root, ".scratch")
	}
	if err := os.MkdirAll(scratch, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir %q: %w", scratch, err)
	}

	// 解析为绝对路径，保证后续的 filepath.Rel 越界检查稳定
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	absScratch, err := filepath.Abs(scratch)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir: %w", err)
	}
	return &LocalVault{root: absRoot, scratch: absScratch}, nil
}

func (v *LocalVault) Root() string {
	return v.root
}

// Resolve 把逻辑路径解析为根目录下的绝对路径
// 用 filepath.Rel 验证结果仍在根目录内，拦截 ".." 等任何形式的越界
func (v *LocalVault) Resolve(rel string) (string, error) {
	joined := filepath.Join(v.root, filepath.Clean(filepath.FromSlash(rel)))
	r, err := filepath.Rel(v.root, joined)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: path %q: %w", rel, xerr.ErrPathViolation)
	}
	return joined, nil
}

func (v *LocalVault) CreateDirectory(rel string) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return fmt.Errorf("storage: mkdir %q: %w", rel, err)
	}
	return nil
}

// DeleteDirectory 递归删除目录，拒绝删除存储根自身
func (v *LocalVault) DeleteDirectory(rel string) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if abs == v.root {
		return fmt.Errorf("storage: refuse to delete storage root: %w", xerr.ErrPathViolation)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: remove dir %q: %w", rel, err)
	}
	return nil
}

// MoveDirectory 先确保目标父目录存在，再原子重命名
func (v *LocalVault) MoveDirectory(oldRel, newRel string) error {
	absOld, err := v.Resolve(oldRel)
	if err != nil {
		return err
	}
	absNew, err := v.Resolve(newRel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o750); err != nil {
		return fmt.Errorf("storage: mkdir parent of %q: %w", newRel, err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move dir %q -> %q: %w", oldRel, newRel, err)
	}
	return nil
}

// WriteFile 以临时文件+重命名的方式流式写入，避免留下半写状态
func (v *LocalVault) WriteFile(rel string, r io.Reader) (int64, error) {
	dest, err := v.Resolve(rel)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, fmt.Errorf("storage: mkdir %q: %w", filepath.Dir(dest), err)
	}

	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("storage: open tmp %q: %w", tmp, err)
	}

	n, werr := io.Copy(f, r)
	cerr := f.Close()
	if werr != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("storage: stream write: %w", werr)
	}
	if cerr != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("storage: flush: %w", cerr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("storage: rename to %q: %w", rel, err)
	}
	return n, nil
}

// CopyIn 把暂存区的文件拷贝进存储根，暂存路径本身不受根目录约束
func (v *LocalVault) CopyIn(stagingPath, dstRel string) (int64, error) {
	src, err := os.Open(stagingPath)
	if err != nil {
		return 0, fmt.Errorf("storage: open staging %q: %w", stagingPath, err)
	}
	defer src.Close()
	return v.WriteFile(dstRel, src)
}

// CopyFile 在存储根内部复制文件
func (v *LocalVault) CopyFile(srcRel, dstRel string) error {
	absSrc, err := v.Resolve(srcRel)
	if err != nil {
		return err
	}
	src, err := os.Open(absSrc)
	if err != nil {
		return fmt.Errorf("storage: open %q: %w", srcRel, err)
	}
	defer src.Close()
	if _, err := v.WriteFile(dstRel, src); err != nil {
		return err
	}
	return nil
}

// ReadFile 打开文件用于读取
// 权限类错误触发降级策略：重试一次把对象复制到临时区，从副本提供读取
// 针对的是瞬时拒绝（杀毒软件或网络盘的短暂锁定），持续性的权限错误重试同样失败并原样上报
func (v *LocalVault) ReadFile(rel string) (*Object, error) {
	abs, err := v.Resolve(rel)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		if os.IsPermission(err) {
			logger.Warn("storage: permission denied, falling back to scratch copy",
				zap.String("path", rel), zap.Error(err))
			return v.readViaScratch(abs)
		}
		return nil, fmt.Errorf("storage: open %q: %w", rel, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: stat %q: %w", rel, err)
	}
	return &Object{Reader: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// readViaScratch 重新打开对象并流式复制到临时区，从副本读取，Close 时删除副本
// 打开仍被拒绝说明不是瞬时拒绝，错误原样返回给调用方
func (v *LocalVault) readViaScratch(abs string) (*Object, error) {
	scratchPath := filepath.Join(v.scratch, uuid.NewString()+filepath.Ext(abs))

	src, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: scratch copy of %q: %w", abs, err)
	}
	defer src.Close()

	// O_EXCL：uuid 命名的副本不应已存在，存在说明临时区被外部写坏
	dst, err := os.OpenFile(scratchPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("storage: create scratch %q: %w", scratchPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(scratchPath)
		return nil, fmt.Errorf("storage: write scratch %q: %w", scratchPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(scratchPath)
		return nil, fmt.Errorf("storage: flush scratch %q: %w", scratchPath, err)
	}

	f, err := os.Open(scratchPath)
	if err != nil {
		os.Remove(scratchPath)
		return nil, fmt.Errorf("storage: open scratch %q: %w", scratchPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		os.Remove(scratchPath)
		return nil, fmt.Errorf("storage: stat scratch %q: %w", scratchPath, err)
	}
	logger.Info("storage: serving from scratch copy", zap.String("scratch", scratchPath))
	return &Object{
		Reader:  &scratchReader{File: f, path: scratchPath},
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Scratch: true,
	}, nil
}

// scratchReader 在 Close 时顺带清理临时副本
type scratchReader struct {
	*os.File
	path string
}

func (s *scratchReader) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
		logger.Warn("storage: failed to remove scratch copy", zap.String("path", s.path), zap.Error(rmErr))
	}
	return err
}

// Unlink 删除单个文件
// 数据库与文件系统可能漂移，对象已不存在时视为成功
func (v *LocalVault) Unlink(rel string) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: unlink %q: %w", rel, err)
	}
	return nil
}

func (v *LocalVault) Exists(rel string) (bool, error) {
	abs, err := v.Resolve(rel)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
