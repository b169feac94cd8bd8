package v1

import (
	"context"
	"sync"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/client"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// Session 当前登录会话，token 只保存在内存中
type Session struct {
	mu        sync.RWMutex
	newClient func(baseURL string) *client.Client
	client    *client.Client
	user      *model.UserInfo
	project   *model.ProjectInfo
}

// NewSession newClient 按服务器地址创建客户端
func NewSession(newClient func(baseURL string) *client.Client) *Session {
	return &Session{newClient: newClient}
}

// Login 登录；成功后替换当前客户端
func (s *Session) Login(ctx context.Context, baseURL, username, password string) (*model.LoginResult, error) {
	c := s.newClient(baseURL)
	res, err := c.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.client = c
	user := res.User
	s.user = &user
	s.project = nil
	s.mu.Unlock()
	return res, nil
}

// Logout 清除会话
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Logout()
	}
	s.client = nil
	s.user = nil
	s.project = nil
}

// Client 当前客户端，未登录时返回 ErrNotLoggedIn
func (s *Session) Client() (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil || !s.client.IsLoggedIn() {
		return nil, client.ErrNotLoggedIn
	}
	return s.client, nil
}

// User 当前用户
func (s *Session) User() *model.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Project 查询并缓存当前用户负责的项目
func (s *Session) Project(ctx context.Context) (*model.ProjectInfo, error) {
	s.mu.RLock()
	cached := s.project
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	p, err := c.GetMyProject(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.project = p
	s.mu.Unlock()
	return p, nil
}

// BatchImport 使用当前会话提交
func (s *Session) BatchImport(ctx context.Context, req *model.BatchImportRequest) (*model.BatchImportResult, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	return c.BatchImport(ctx, req)
}
