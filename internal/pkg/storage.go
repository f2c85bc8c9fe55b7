package pkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrFileTooLarge = errors.New("file too large")

// FileStorage 文件存储；返回的路径对调用方不透明
type FileStorage interface {
	Store(ctx context.Context, r io.Reader, filename, folder string) (string, error)
	Delete(ctx context.Context, stored string) error
	Owns(stored string) bool
}

// LocalStorage 写本地磁盘，对外暴露 URLPrefix 下的地址
type LocalStorage struct {
	Root      string
	URLPrefix string
	MaxBytes  int64
}

func NewLocalStorage(root, urlPrefix string, maxBytes int64) *LocalStorage {
	return &LocalStorage{Root: root, URLPrefix: strings.TrimRight(urlPrefix, "/"), MaxBytes: maxBytes}
}

func (s *LocalStorage) Store(ctx context.Context, r io.Reader, filename, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	day := time.Now().Format("2006/01/02")
	rel := path.Join(cleanFolder(folder), day)
	dir := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	// 多读一个字节用来判断是否超限
	written, err := io.Copy(out, io.LimitReader(r, s.MaxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write file: %w", err)
	}
	if written > s.MaxBytes {
		_ = os.Remove(dst)
		return "", ErrFileTooLarge
	}
	return s.URLPrefix + "/" + path.Join(rel, name), nil
}

// Delete 只删除本存储写出的文件，外链直接忽略
func (s *LocalStorage) Delete(ctx context.Context, stored string) error {
	if !s.Owns(stored) {
		return nil
	}
	rel := strings.TrimPrefix(stored, s.URLPrefix+"/")
	if strings.Contains(rel, "..") {
		return fmt.Errorf("invalid stored path %q", stored)
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) Owns(stored string) bool {
	return stored != "" && strings.HasPrefix(stored, s.URLPrefix+"/")
}

func cleanFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" {
		return "misc"
	}
	return folder
}
