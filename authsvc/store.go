package authsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// 用户库的失败形态
var (
	ErrUsernameTaken    = errors.New("username_taken")
	ErrEmailTaken       = errors.New("email_taken")
	ErrIDSpaceExhausted = errors.New("id_space_exhausted_0_255")
	ErrUserNotFound     = errors.New("user_not_found")
)

// bin8Re 用户 id 的合法形态：恰好 8 位二进制字符串
var bin8Re = regexp.MustCompile(`^[01]{8}$`)

// User 一条用户记录。id 是 8 位二进制字符串（"00000010"），
// 空间只有 0..255——id 同时就是玩家在棋盘字节里的身份。
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type fileFormat struct {
	Users []User `json:"users"`
}

// Store 落在单个 JSON 文件上的用户库。每次操作整读整写，
// 规模上限 256 个用户，没必要更复杂。
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(&fileFormat{Users: []User{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() (*fileFormat, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read user store: %w", err)
	}
	var db fileFormat
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("parse user store: %w", err)
	}
	return &db, nil
}

func (s *Store) save(db *fileFormat) error {
	raw, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// FormatID 把 0..255 映射为 8 位二进制字符串
func FormatID(n int) string {
	return fmt.Sprintf("%08b", n&0xFF)
}

// NormalizeID 接受数字或 8 位串两种形态，归一成 8 位串
func NormalizeID(raw string) (string, bool) {
	if bin8Re.MatchString(raw) {
		return raw, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 255 {
		return "", false
	}
	return FormatID(n), true
}

// nextFreeID 取最小的空闲 id
func nextFreeID(users []User) (string, error) {
	used := make(map[int]bool, len(users))
	for _, u := range users {
		if bin8Re.MatchString(u.ID) {
			n, _ := strconv.ParseInt(u.ID, 2, 16)
			used[int(n)] = true
		}
	}
	for n := 0; n < 256; n++ {
		if !used[n] {
			return FormatID(n), nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// Create 新增用户：用户名与邮箱大小写不敏感去重，分配最小空闲 id
func (s *Store) Create(username, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range db.Users {
		if strings.EqualFold(u.Username, username) {
			return nil, ErrUsernameTaken
		}
		if strings.EqualFold(u.Email, email) {
			return nil, ErrEmailTaken
		}
	}
	id, err := nextFreeID(db.Users)
	if err != nil {
		return nil, err
	}
	user := User{ID: id, Username: username, Email: email}
	db.Users = append(db.Users, user)
	if err := s.save(db); err != nil {
		return nil, err
	}
	return &user, nil
}

// Find 按 id → 用户名 → 邮箱的优先级定位用户，全部落空返回 ErrUserNotFound
func (s *Store) Find(id, username, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.load()
	if err != nil {
		return nil, err
	}
	if id != "" {
		if norm, ok := NormalizeID(id); ok {
			for i := range db.Users {
				if db.Users[i].ID == norm {
					return &db.Users[i], nil
				}
			}
		}
	}
	if username != "" {
		for i := range db.Users {
			if strings.EqualFold(db.Users[i].Username, username) {
				return &db.Users[i], nil
			}
		}
	}
	if email != "" {
		for i := range db.Users {
			if strings.EqualFold(db.Users[i].Email, email) {
				return &db.Users[i], nil
			}
		}
	}
	return nil, ErrUserNotFound
}
