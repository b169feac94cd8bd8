package client

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

var (
	mainlandPhone = regexp.MustCompile(`^1\d{10}$`)
	intlPhone     = regexp.MustCompile(`^\+?\d{10,15}$`)
	phoneNoise    = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// IsPhoneNumber 判断登录名是否为手机号（忽略空格、横线和括号）
func IsPhoneNumber(username string) bool {
	s := phoneNoise.Replace(username)
	return mainlandPhone.MatchString(s) || intlPhone.MatchString(s)
}

type loginData struct {
	Token             string          `json:"token"`
	RefreshToken      string          `json:"refreshToken"`
	RefreshTokenSnake string          `json:"refresh_token"`
	ID                int64           `json:"id"`
	User              *model.UserInfo `json:"user"`
}

// Login 登录并保存 token；手机号使用 phone 字段提交
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResult, error) {
	body := map[string]string{"password": password}
	if IsPhoneNumber(username) {
		body["phone"] = username
	} else {
		body["username"] = username
	}

	var data loginData
	if err := c.call(ctx, "login", http.MethodPost, loginPath, body, c.cfg.LoginTimeout, false, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, &APIError{Kind: KindMalformed, Op: "login", Message: "服务器未返回Token"}
	}

	result := &model.LoginResult{
		Token:        data.Token,
		RefreshToken: data.RefreshToken,
	}
	if result.RefreshToken == "" {
		result.RefreshToken = data.RefreshTokenSnake
	}
	if data.User != nil {
		result.User = *data.User
	} else {
		result.User = model.UserInfo{ID: data.ID}
	}
	if result.User.Username == "" {
		result.User.Username = username
	}

	c.SetToken(data.Token)
	c.logger.Info("login succeeded",
		zap.String("username", result.User.Username),
		zap.Int64("user_id", result.User.ID),
	)
	return result, nil
}
