package officialaccount

import (
	"context"
	"fmt"
	"io"
	"time"
)

const (
	kfListPath         = "/cgi-bin/customservice/getkflist"
	kfOnlineListPath   = "/cgi-bin/customservice/getonlinekflist"
	kfAddPath          = "/customservice/kfaccount/add"
	kfUpdatePath       = "/customservice/kfaccount/update"
	kfDeletePath       = "/customservice/kfaccount/del"
	kfInvitePath       = "/customservice/kfaccount/inviteworker"
	kfUploadAvatarPath = "/customservice/kfaccount/uploadheadimg"
	customSendPath     = "/cgi-bin/message/custom/send"
	customTypingPath   = "/cgi-bin/message/custom/typing"
	kfMsgRecordPath    = "/customservice/msgrecord/getmsglist"

	// 消息记录单次拉取上限
	msgRecordPageSize = 10000
)

// KfAccount 客服帐号
type KfAccount struct {
	KfAccount        string `json:"kf_account"`
	KfNick           string `json:"kf_nick"`
	KfID             string `json:"kf_id"`
	KfHeadImgURL     string `json:"kf_headimgurl,omitempty"`
	KfWx             string `json:"kf_wx,omitempty"`
	InviteWx         string `json:"invite_wx,omitempty"`
	InviteExpireTime int64  `json:"invite_expire_time,omitempty"`
	InviteStatus     string `json:"invite_status,omitempty"`
}

type KfListResponse struct {
	KfList []KfAccount `json:"kf_list"`
}

// ListKf 获取所有客服帐号
func (c *Client) ListKf(ctx context.Context) (*KfListResponse, error) {
	resp, err := Request[KfListResponse](c).Path(kfListPath).Get(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type OnlineKf struct {
	KfAccount    string `json:"kf_account"`
	Status       int    `json:"status"`
	KfID         string `json:"kf_id"`
	AcceptedCase int    `json:"accepted_case"`
}

type OnlineKfListResponse struct {
	KfOnlineList []OnlineKf `json:"kf_online_list"`
}

// OnlineKf 获取在线客服
func (c *Client) OnlineKf(ctx context.Context) (*OnlineKfListResponse, error) {
	resp, err := Request[OnlineKfListResponse](c).Path(kfOnlineListPath).Get(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type kfAccountBody struct {
	KfAccount string `json:"kf_account"`
	Nickname  string `json:"nickname,omitempty"`
	InviteWx  string `json:"invite_wx,omitempty"`
}

// CreateKf 添加客服帐号，account 格式为 帐号前缀@公众号微信号
func (c *Client) CreateKf(ctx context.Context, account, nickname string) error {
	if account == "" {
		return fmt.Errorf("kf_account is required")
	}
	return c.Post(ctx, kfAddPath, kfAccountBody{KfAccount: account, Nickname: nickname}, nil)
}

// UpdateKf 设置客服昵称
func (c *Client) UpdateKf(ctx context.Context, account, nickname string) error {
	if account == "" {
		return fmt.Errorf("kf_account is required")
	}
	return c.Post(ctx, kfUpdatePath, kfAccountBody{KfAccount: account, Nickname: nickname}, nil)
}

// DeleteKf 删除客服帐号
func (c *Client) DeleteKf(ctx context.Context, account string) error {
	if account == "" {
		return fmt.Errorf("kf_account is required")
	}
	_, err := Request[struct{}](c).Path(kfDeletePath).Query("kf_account", account).Post(ctx)
	return err
}

// InviteKf 邀请微信用户绑定客服帐号
func (c *Client) InviteKf(ctx context.Context, account, wechatID string) error {
	if account == "" || wechatID == "" {
		return fmt.Errorf("kf_account and invite_wx are required")
	}
	return c.Post(ctx, kfInvitePath, kfAccountBody{KfAccount: account, InviteWx: wechatID}, nil)
}

// SetKfAvatar 上传客服头像，文件以 media 字段提交
func (c *Client) SetKfAvatar(ctx context.Context, account, fileName string, avatar io.Reader) error {
	if account == "" {
		return fmt.Errorf("kf_account is required")
	}
	if avatar == nil {
		return fmt.Errorf("avatar is required")
	}
	_, err := Request[struct{}](c).
		Path(kfUploadAvatarPath).
		Query("kf_account", account).
		UploadFile("media", fileName, avatar).
		Post(ctx)
	return err
}

// SendMessage 发送客服消息，message 为完整消息体（touser、msgtype 及对应内容）
func (c *Client) SendMessage(ctx context.Context, message any) error {
	if message == nil {
		return fmt.Errorf("message is required")
	}
	return c.Post(ctx, customSendPath, message, nil)
}

type typingBody struct {
	ToUser  string `json:"touser"`
	Command string `json:"command"`
}

// ShowTyping 向用户下发“正在输入”状态
func (c *Client) ShowTyping(ctx context.Context, openID string) error {
	return c.typing(ctx, openID, "Typing")
}

// HideTyping 取消“正在输入”状态
func (c *Client) HideTyping(ctx context.Context, openID string) error {
	return c.typing(ctx, openID, "CancelTyping")
}

func (c *Client) typing(ctx context.Context, openID, command string) error {
	if openID == "" {
		return fmt.Errorf("openid is required")
	}
	return c.Post(ctx, customTypingPath, typingBody{ToUser: openID, Command: command}, nil)
}

type msgRecordBody struct {
	StartTime int64 `json:"starttime"`
	EndTime   int64 `json:"endtime"`
	MsgID     int64 `json:"msgid"`
	Number    int   `json:"number"`
}

type MsgRecord struct {
	OpenID   string `json:"openid"`
	OperCode int    `json:"opercode"`
	Text     string `json:"text"`
	Time     int64  `json:"time"`
	Worker   string `json:"worker"`
}

type MsgRecordsResponse struct {
	RecordList []MsgRecord `json:"recordlist"`
	Number     int         `json:"number"`
	MsgID      int64       `json:"msgid"`
}

// MessageRecords 获取 [start, end] 区间内的聊天记录，起始 msgid 为 1
func (c *Client) MessageRecords(ctx context.Context, start, end time.Time) (*MsgRecordsResponse, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end must be after start")
	}
	resp, err := Request[MsgRecordsResponse](c).
		Path(kfMsgRecordPath).
		Body(msgRecordBody{
			StartTime: start.Unix(),
			EndTime:   end.Unix(),
			MsgID:     1,
			Number:    msgRecordPageSize,
		}).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
