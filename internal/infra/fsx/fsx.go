package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 测试通过替换它模拟 rename 失败。
var renameFunc = os.Rename

// Mode 决定目标已存在时的行为。
type Mode int

const (
	// Replace 覆盖同名文件。
	Replace Mode = iota
	// NoOverwrite 目标已存在时返回 os.ErrExist（可用 errors.Is 判断）。
	NoOverwrite
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFile 原子写入 path（同目录临时文件 + rename），必要时创建父目录。
//
// - 目标是目录或非普通文件时返回 PathTypeConflictError（两种模式都不会覆盖它）
// - 临时文件以 '.' 开头并在失败时删除；rename 成功后不会再删除最终文件
func WriteFile(path string, data []byte, mode Mode) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("fsx: 目标路径不能为空")
	}
	dst := filepath.Clean(path)

	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
		}
		if mode == NoOverwrite {
			return fmt.Errorf("%q 已存在：%w", dst, os.ErrExist)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	dir, name := filepath.Split(dst)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
