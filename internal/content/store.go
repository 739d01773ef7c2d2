package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"inkwell/internal/richdoc"
	"inkwell/internal/slug"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrSlugTaken     = errors.New("slug already taken")
)

// Kind 区分内容栏目,决定条目在首页与订阅里的归类。
type Kind string

const (
	KindArticle Kind = "article"
	KindAlbum   Kind = "album"
	KindThought Kind = "thought"
	KindReading Kind = "reading"
)

// Format 表示原始内容的载体格式。
type Format string

const (
	FormatRichdoc  Format = "richdoc"
	FormatMarkdown Format = "markdown"
)

// Entry 表示存储在磁盘上的一篇内容。
type Entry struct {
	Slug        string    `json:"slug"`
	Kind        Kind      `json:"kind"`
	Format      Format    `json:"format"`
	Title       string    `json:"title,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	Raw         string    `json:"raw"`
	Description string    `json:"description,omitempty"`
	Reads       int       `json:"reads"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Draft 汇集创建或更新一篇内容所需的字段。
type Draft struct {
	Slug        string
	Kind        Kind
	Format      Format
	Title       string
	Lang        string
	Raw         string
	Description string
}

// Store 负责将 Entry 持久化到文件系统。
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore 创建一个指向指定目录的 Store，目录不存在会自动创建。
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("content root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Create 新建一篇内容并返回持久化后的 Entry。
// 草稿自带 slug 时先规整再查重,否则分配随机 slug。
func (s *Store) Create(d Draft) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateDraft(d); err != nil {
		return Entry{}, err
	}

	var slugID string
	if d.Slug != "" {
		// 写入侧与读取侧同一套校验,读不回来的 slug 绝不落盘。
		slugID = slug.Normalize(d.Slug)
		if !validSlug(slugID) {
			return Entry{}, fmt.Errorf("invalid slug %q", slugID)
		}
		if _, err := os.Stat(s.entryPath(slugID)); err == nil {
			return Entry{}, ErrSlugTaken
		}
	} else {
		for i := 0; i < 5; i++ {
			candidate := slug.New()
			if _, err := os.Stat(s.entryPath(candidate)); errors.Is(err, os.ErrNotExist) {
				slugID = candidate
				break
			}
		}
		if slugID == "" {
			return Entry{}, errors.New("unable to allocate unique slug")
		}
	}

	now := time.Now().UTC()
	entry := Entry{
		Slug:        slugID,
		Kind:        d.Kind,
		Format:      d.Format,
		Title:       strings.TrimSpace(d.Title),
		Lang:        strings.TrimSpace(d.Lang),
		Raw:         d.Raw,
		Description: strings.TrimSpace(d.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persist(entry); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// Update 覆盖现有内容,保留创建时间与阅读数。
func (s *Store) Update(slugID string, d Draft) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateDraft(d); err != nil {
		return Entry{}, err
	}

	existing, err := s.read(slugID)
	if err != nil {
		return Entry{}, err
	}

	existing.Kind = d.Kind
	existing.Format = d.Format
	existing.Title = strings.TrimSpace(d.Title)
	existing.Lang = strings.TrimSpace(d.Lang)
	existing.Raw = d.Raw
	existing.Description = strings.TrimSpace(d.Description)
	existing.UpdatedAt = time.Now().UTC()

	if err := s.persist(existing); err != nil {
		return Entry{}, err
	}

	return existing, nil
}

// Get 读取指定 slug 的内容。
func (s *Store) Get(slugID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(slugID)
}

// List 返回所有内容，按创建时间倒序排列。
func (s *Store) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if filepath.Ext(f.Name()) != ".json" {
			continue
		}
		slugID := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		entry, err := s.read(slugID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Slug > entries[j].Slug
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

// IncrementReads 把阅读数加一并返回新值。不触碰 UpdatedAt。
func (s *Store) IncrementReads(slugID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(slugID)
	if err != nil {
		return 0, err
	}
	entry.Reads++
	if err := s.persist(entry); err != nil {
		return 0, err
	}
	return entry.Reads, nil
}

// Delete 移除指定 slug 的内容。
func (s *Store) Delete(slugID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validSlug(slugID) {
		return ErrEntryNotFound
	}
	path := s.entryPath(slugID)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (s *Store) entryPath(slugID string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s.json", slugID))
}

func (s *Store) persist(entry Entry) error {
	path := s.entryPath(entry.Slug)
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&entry); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) read(slugID string) (Entry, error) {
	if !validSlug(slugID) {
		return Entry{}, ErrEntryNotFound
	}
	path := s.entryPath(slugID)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("open entry: %w", err)
	}
	defer file.Close()

	var entry Entry
	if err := json.NewDecoder(file).Decode(&entry); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}

// validSlug 过滤会逃出存储目录或产生怪异文件名的 slug。
// slug 来自 URL 路径,不能直接交给 filepath.Join。
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

func validateDraft(d Draft) error {
	switch d.Kind {
	case KindArticle, KindAlbum, KindThought, KindReading:
	default:
		return fmt.Errorf("unsupported kind: %s", d.Kind)
	}
	switch d.Format {
	case FormatMarkdown:
	case FormatRichdoc:
		// 结构化文档入库前先过一遍解码,把坏文档挡在写入边界。
		if _, err := richdoc.Decode([]byte(d.Raw)); err != nil {
			return fmt.Errorf("invalid document: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", d.Format)
	}
	return nil
}
