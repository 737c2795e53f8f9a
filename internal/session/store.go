package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrNoCredential 未登录
var ErrNoCredential = errors.New("no credential stored")

// Credential Bearer 凭证
type Credential string

// Empty 是否为空凭证
func (c Credential) Empty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// Bearer Authorization 头的值
func (c Credential) Bearer() string {
	return "Bearer " + string(c)
}

// record token 文件格式
type record struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// Store 进程级凭证存储
// 登录时写入并持久化，登出时清除并删除文件
type Store struct {
	mu     sync.RWMutex
	file   string
	token  Credential
	logger *zap.Logger
}

// NewStore 创建凭证存储，file 为空时不持久化
func NewStore(file string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{file: file, logger: logger}
}

// Load 从 token 文件加载凭证
func (s *Store) Load() error {
	if s.file == "" {
		return ErrNoCredential
	}

	data, err := os.ReadFile(s.file)
	if err != nil {
		return err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode token file: %w", err)
	}
	if rec.Token == "" {
		return ErrNoCredential
	}

	s.mu.Lock()
	s.token = Credential(rec.Token)
	s.mu.Unlock()
	return nil
}

// Login 保存凭证
func (s *Store) Login(token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ErrNoCredential
	}

	s.mu.Lock()
	s.token = Credential(token)
	s.mu.Unlock()

	if s.file == "" {
		return nil
	}

	data, err := json.MarshalIndent(record{Token: token, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.file, data, 0600); err != nil {
		return fmt.Errorf("save token file: %w", err)
	}
	return nil
}

// Logout 清除凭证并删除 token 文件
func (s *Store) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if s.file == "" {
		return nil
	}
	if err := os.Remove(s.file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Token 当前凭证，每次认证请求前读取
func (s *Store) Token() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn 是否已登录
func (s *Store) LoggedIn() bool {
	return !s.Token().Empty()
}

// UserID 从 token 的 userId（或 sub）声明中读取用户 ID
// 这里不校验签名，签名由后端校验
func (s *Store) UserID() string {
	tok := s.Token()
	if tok.Empty() {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(tok), claims); err != nil {
		s.logger.Debug("Token is not a JWT", zap.Error(err))
		return ""
	}

	for _, key := range []string{"userId", "user_id", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
