// internal/storage/file_cache.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileCacheService 提供文本文件的内存缓存
// 用于提示词模板：命中时避免磁盘读取，文件被修改后自动失效，
// 因此编辑模板无需重启服务
type FileCacheService struct {
	cache      map[string]*FileCacheEntry
	mutex      sync.RWMutex
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 缓存过期时间
}

// FileCacheEntry 缓存条目
type FileCacheEntry struct {
	Content   string
	CreatedAt time.Time
	LastRead  time.Time
	ModTime   time.Time // 用于检测文件是否被修改
	Size      int64
}

// NewFileCacheService 创建文件缓存服务
func NewFileCacheService(maxSize int, expiration time.Duration) *FileCacheService {
	if maxSize <= 0 {
		maxSize = 1000 // 默认缓存1000个条目
	}

	if expiration <= 0 {
		expiration = 5 * time.Minute // 默认5分钟过期
	}

	return &FileCacheService{
		cache:      make(map[string]*FileCacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
	}
}

// ReadTextFile 读取文本文件，优先命中缓存
func (s *FileCacheService) ReadTextFile(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("获取文件绝对路径失败: %w", err)
	}

	// 检查缓存
	s.mutex.RLock()
	entry, exists := s.cache[absPath]
	s.mutex.RUnlock()

	if exists {
		fileInfo, err := os.Stat(absPath)
		if err == nil {
			// 检查文件是否被修改以及是否过期
			isModified := fileInfo.ModTime().After(entry.ModTime) ||
				fileInfo.Size() != entry.Size
			isExpired := time.Since(entry.CreatedAt) > s.expiration

			if !isModified && !isExpired {
				s.mutex.Lock()
				entry.LastRead = time.Now()
				s.mutex.Unlock()
				return entry.Content, nil
			}
		}
	}

	// 缓存无效或不存在，读取文件
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("获取文件信息失败: %w", err)
	}

	content := strings.TrimSpace(string(data))

	s.mutex.Lock()
	if len(s.cache) >= s.maxSize {
		s.evictOldestLocked()
	}
	s.cache[absPath] = &FileCacheEntry{
		Content:   content,
		CreatedAt: time.Now(),
		LastRead:  time.Now(),
		ModTime:   fileInfo.ModTime(),
		Size:      fileInfo.Size(),
	}
	s.mutex.Unlock()

	return content, nil
}

// Invalidate 移除指定文件的缓存
func (s *FileCacheService) Invalidate(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.cache, absPath)
}

// Clear 清空缓存
func (s *FileCacheService) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cache = make(map[string]*FileCacheEntry)
}

// Len 返回当前缓存条目数
func (s *FileCacheService) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.cache)
}

// evictOldestLocked 淘汰最久未读取的条目，调用方必须持有写锁
func (s *FileCacheService) evictOldestLocked() {
	type aged struct {
		path     string
		lastRead time.Time
	}

	entries := make([]aged, 0, len(s.cache))
	for path, entry := range s.cache {
		entries = append(entries, aged{path: path, lastRead: entry.LastRead})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastRead.Before(entries[j].lastRead)
	})

	// 一次淘汰最旧的10%
	evictCount := len(entries) / 10
	if evictCount < 1 {
		evictCount = 1
	}

	for i := 0; i < evictCount && i < len(entries); i++ {
		delete(s.cache, entries[i].path)
	}
}
