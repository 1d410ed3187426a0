package openwork

import (
	"context"
	"fmt"
)

const getLoginInfoPath = "/cgi-bin/service/get_login_info"

type LoginUser struct {
	UserID     string `json:"userid"`
	OpenUserID string `json:"open_userid"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
}

type LoginCorp struct {
	CorpID string `json:"corpid"`
}

type LoginAgent struct {
	AgentID  int `json:"agentid"`
	AuthType int `json:"auth_type"`
}

type LoginAuthInfo struct {
	Department []struct {
		ID       int  `json:"id"`
		Writable bool `json:"writable"`
	} `json:"department"`
}

// LoginInfo 扫码登录用户信息
type LoginInfo struct {
	// UserType 1 创建者 2 内部系统管理员 3 外部系统管理员 4 分级管理员 5 成员
	UserType int           `json:"usertype"`
	UserInfo LoginUser     `json:"user_info"`
	CorpInfo LoginCorp     `json:"corp_info"`
	Agent    []LoginAgent  `json:"agent"`
	AuthInfo LoginAuthInfo `json:"auth_info"`
}

// GetLoginInfo 用 auth_code 获取扫码登录用户信息
// 接口文档: https://developer.work.weixin.qq.com/document/path/91125
func (c *Client) GetLoginInfo(ctx context.Context, authCode string) (*LoginInfo, error) {
	if authCode == "" {
		return nil, fmt.Errorf("auth_code is required")
	}
	resp, err := Request[LoginInfo](c).
		Path(getLoginInfoPath).
		Body(map[string]string{"auth_code": authCode}).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
