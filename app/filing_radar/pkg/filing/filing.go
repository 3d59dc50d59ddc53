package filing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

var (
	// ErrNotFound 文件不存在
	ErrNotFound = errors.New("filing not found")
	// ErrTooLarge 文件超过字节上限
	ErrTooLarge = errors.New("filing exceeds byte cap")
)

// FetchError 获取文件失败，Retryable 表示调用方可以稍后重试
type FetchError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("filing %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Document 原始文件内容与其引用
type Document struct {
	Ref    model.FilingRef
	Body   []byte
	Markup bool
}

// Source 文件检索协作方
type Source interface {
	Fetch(ctx context.Context, subject, filingKey string) (*Document, error)
}

// DirSource 从本地目录读取 <dir>/<SUBJECT>/<filing_key>.{htm,html,txt}，可选同名 .json 描述 FilingRef
type DirSource struct {
	dir      string
	maxBytes int64
}

// NewDirSource 创建目录来源
func NewDirSource(dir string, maxBytes int64) *DirSource {
	return &DirSource{dir: dir, maxBytes: maxBytes}
}

var extensions = []struct {
	ext    string
	markup bool
}{
	{".htm", true},
	{".html", true},
	{".txt", false},
}

// Fetch 实现 Source
func (s *DirSource) Fetch(ctx context.Context, subject, filingKey string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Op: "fetch", Retryable: true, Err: err}
	}
	subject = strings.ToUpper(strings.TrimSpace(subject))
	if !safeName(subject) || !safeName(filingKey) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, subject, filingKey)
	}
	base := filepath.Join(s.dir, subject, filingKey)

	for _, e := range extensions {
		path := base + e.ext
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &FetchError{Op: "stat", Retryable: true, Err: err}
		}
		if s.maxBytes > 0 && info.Size() > s.maxBytes {
			return nil, &FetchError{Op: "download", Err: fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, info.Size(), s.maxBytes)}
		}

		body, err := s.read(path)
		if err != nil {
			return nil, err
		}
		ref, err := s.ref(base, subject, filingKey, path)
		if err != nil {
			return nil, err
		}
		return &Document{Ref: ref, Body: body, Markup: e.markup}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, subject, filingKey)
}

func (s *DirSource) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Op: "open", Retryable: true, Err: err}
	}
	defer f.Close()

	r := io.Reader(f)
	if s.maxBytes > 0 {
		r = io.LimitReader(f, s.maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &FetchError{Op: "read", Retryable: true, Err: err}
	}
	if s.maxBytes > 0 && int64(len(body)) > s.maxBytes {
		return nil, &FetchError{Op: "download", Err: ErrTooLarge}
	}
	return body, nil
}

// ref 读取 sidecar，缺失字段用文件名补齐
func (s *DirSource) ref(base, subject, filingKey, path string) (model.FilingRef, error) {
	var ref model.FilingRef
	data, err := os.ReadFile(base + ".json")
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &ref); err != nil {
			return ref, &FetchError{Op: "metadata", Err: err}
		}
	case !errors.Is(err, os.ErrNotExist):
		return ref, &FetchError{Op: "metadata", Retryable: true, Err: err}
	}

	ref.Subject = subject
	ref.FilingKey = filingKey
	if ref.SourceURL == "" {
		ref.SourceURL = "file://" + filepath.ToSlash(path)
	}
	return ref, nil
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}
