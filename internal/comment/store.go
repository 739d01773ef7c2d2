// Package comment 存放访客评论。每篇内容的评论放在以 slug 命名的
// JSON 文件里,写入走临时文件加改名,与内容存储同一套做法。
package comment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrInvalidComment  = errors.New("invalid comment")
)

// 上限按字符数计,与评论表单各输入框的 maxlength 一致。
const (
	maxAuthorLen = 80
	maxEmailLen  = 254
	maxBodyLen   = 4000
)

// Comment 表示一条访客评论。
type Comment struct {
	ID           string    `json:"id"`
	EntrySlug    string    `json:"entry_slug"`
	Author       string    `json:"author"`
	Email        string    `json:"email,omitempty"`
	Body         string    `json:"body"`
	Notify       bool      `json:"notify"`
	Unsubscribed bool      `json:"unsubscribed,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store 负责评论的持久化。
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore 创建一个指向指定目录的 Store,目录不存在会自动创建。
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("comments root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create comments dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Add 校验并追加一条评论,返回持久化后的 Comment。
func (s *Store) Add(entrySlug, author, email, body string, notify bool) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validSlug(entrySlug) {
		return Comment{}, ErrCommentNotFound
	}
	author = strings.TrimSpace(author)
	email = strings.TrimSpace(email)
	body = strings.TrimSpace(body)
	switch {
	case author == "" || utf8.RuneCountInString(author) > maxAuthorLen:
		return Comment{}, fmt.Errorf("%w: author", ErrInvalidComment)
	case body == "" || utf8.RuneCountInString(body) > maxBodyLen:
		return Comment{}, fmt.Errorf("%w: body", ErrInvalidComment)
	case utf8.RuneCountInString(email) > maxEmailLen:
		return Comment{}, fmt.Errorf("%w: email", ErrInvalidComment)
	case notify && email == "":
		return Comment{}, fmt.Errorf("%w: notify requires email", ErrInvalidComment)
	}

	comments, err := s.read(entrySlug)
	if err != nil {
		return Comment{}, err
	}

	c := Comment{
		ID:        uuid.NewString(),
		EntrySlug: entrySlug,
		Author:    author,
		Email:     email,
		Body:      body,
		Notify:    notify,
		CreatedAt: time.Now().UTC(),
	}
	comments = append(comments, c)

	if err := s.persist(entrySlug, comments); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// ListForEntry 返回某篇内容的全部评论,按提交先后排列。
func (s *Store) ListForEntry(entrySlug string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !validSlug(entrySlug) {
		return nil, nil
	}
	return s.read(entrySlug)
}

// Unsubscribe 按评论 ID 关掉后续通知。幂等:重复退订不报错。
func (s *Store) Unsubscribe(entrySlug, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validSlug(entrySlug) {
		return ErrCommentNotFound
	}
	comments, err := s.read(entrySlug)
	if err != nil {
		return err
	}

	for i := range comments {
		if comments[i].ID == commentID {
			if comments[i].Unsubscribed {
				return nil
			}
			comments[i].Unsubscribed = true
			return s.persist(entrySlug, comments)
		}
	}
	return ErrCommentNotFound
}

// DeleteForEntry 在内容被删除时移除整个评论文件。
func (s *Store) DeleteForEntry(entrySlug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validSlug(entrySlug) {
		return nil
	}
	if err := os.Remove(s.filePath(entrySlug)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete comments: %w", err)
	}
	return nil
}

func (s *Store) filePath(entrySlug string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s.json", entrySlug))
}

func (s *Store) read(entrySlug string) ([]Comment, error) {
	file, err := os.Open(s.filePath(entrySlug))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open comments: %w", err)
	}
	defer file.Close()

	var comments []Comment
	if err := json.NewDecoder(file).Decode(&comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return comments, nil
}

func (s *Store) persist(entrySlug string, comments []Comment) error {
	path := s.filePath(entrySlug)
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(comments); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode comments: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func validSlug(s string) bool {
	if s == "" || len(s) > 80 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
