package work

import (
	"context"
	"fmt"
)

const (
	momentListPath         = "/cgi-bin/externalcontact/get_moment_list"
	momentTaskPath         = "/cgi-bin/externalcontact/get_moment_task"
	momentCustomerListPath = "/cgi-bin/externalcontact/get_moment_customer_list"
	momentSendResultPath   = "/cgi-bin/externalcontact/get_moment_send_result"
	momentCommentsPath     = "/cgi-bin/externalcontact/get_moment_comments"
)

// MomentListRequest 客户朋友圈列表查询条件，时间跨度不超过一个月
type MomentListRequest struct {
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Creator   string `json:"creator,omitempty"`
	// FilterType 0 企业发表，1 个人发表，2 所有
	FilterType int    `json:"filter_type,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type Moment struct {
	MomentID    string         `json:"moment_id"`
	Creator     string         `json:"creator"`
	CreateTime  int64          `json:"create_time"`
	CreateType  int            `json:"create_type"`
	VisibleType int            `json:"visible_type"`
	Text        map[string]any `json:"text,omitempty"`
	Image       []any          `json:"image,omitempty"`
	Video       map[string]any `json:"video,omitempty"`
	Link        map[string]any `json:"link,omitempty"`
	Location    map[string]any `json:"location,omitempty"`
}

type MomentListResponse struct {
	NextCursor string   `json:"next_cursor"`
	MomentList []Moment `json:"moment_list"`
}

// MomentList 获取企业全部的发表列表
// 接口文档: https://developer.work.weixin.qq.com/document/path/93333
func (c *Client) MomentList(ctx context.Context, req MomentListRequest) (*MomentListResponse, error) {
	if req.StartTime == 0 || req.EndTime == 0 {
		return nil, fmt.Errorf("start_time and end_time are required")
	}
	resp, err := Request[MomentListResponse](c).Path(momentListPath).Body(req).Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type momentPageBody struct {
	MomentID string `json:"moment_id"`
	UserID   string `json:"userid,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type MomentTask struct {
	UserID        string `json:"userid"`
	PublishStatus int    `json:"publish_status"`
}

type MomentTasksResponse struct {
	NextCursor string       `json:"next_cursor"`
	TaskList   []MomentTask `json:"task_list"`
}

// MomentTasks 获取企业发表的朋友圈成员执行情况
func (c *Client) MomentTasks(ctx context.Context, momentID, cursor string, limit int) (*MomentTasksResponse, error) {
	if momentID == "" {
		return nil, fmt.Errorf("moment_id is required")
	}
	resp, err := Request[MomentTasksResponse](c).
		Path(momentTaskPath).
		Body(momentPageBody{MomentID: momentID, Cursor: cursor, Limit: limit}).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type MomentCustomer struct {
	UserID         string `json:"userid"`
	ExternalUserID string `json:"external_userid"`
}

type MomentCustomersResponse struct {
	NextCursor   string           `json:"next_cursor"`
	CustomerList []MomentCustomer `json:"customer_list"`
}

// MomentCustomers 获取客户朋友圈发表时选择的可见范围
func (c *Client) MomentCustomers(ctx context.Context, momentID, userID, cursor string, limit int) (*MomentCustomersResponse, error) {
	return c.momentCustomerPage(ctx, momentCustomerListPath, momentID, userID, cursor, limit)
}

// MomentSendResult 获取客户朋友圈发表后的可见客户列表
func (c *Client) MomentSendResult(ctx context.Context, momentID, userID, cursor string, limit int) (*MomentCustomersResponse, error) {
	return c.momentCustomerPage(ctx, momentSendResultPath, momentID, userID, cursor, limit)
}

func (c *Client) momentCustomerPage(ctx context.Context, path, momentID, userID, cursor string, limit int) (*MomentCustomersResponse, error) {
	if momentID == "" || userID == "" {
		return nil, fmt.Errorf("moment_id and userid are required")
	}
	resp, err := Request[MomentCustomersResponse](c).
		Path(path).
		Body(momentPageBody{MomentID: momentID, UserID: userID, Cursor: cursor, Limit: limit}).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type MomentInteraction struct {
	ExternalUserID string `json:"external_userid,omitempty"`
	UserID         string `json:"userid,omitempty"`
	CreateTime     int64  `json:"create_time"`
}

type MomentCommentsResponse struct {
	CommentList []MomentInteraction `json:"comment_list"`
	LikeList    []MomentInteraction `json:"like_list"`
}

// MomentComments 获取客户朋友圈的互动数据
func (c *Client) MomentComments(ctx context.Context, momentID, userID string) (*MomentCommentsResponse, error) {
	if momentID == "" || userID == "" {
		return nil, fmt.Errorf("moment_id and userid are required")
	}
	resp, err := Request[MomentCommentsResponse](c).
		Path(momentCommentsPath).
		Body(momentPageBody{MomentID: momentID, UserID: userID}).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
