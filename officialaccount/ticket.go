package officialaccount

import (
	"context"
	"fmt"

	"github.com/ShinyNito/wechatkit/core"
)

const (
	getTicketPath        = "/cgi-bin/ticket/getticket"
	ticketCacheKeyPrefix = "officialaccount:ticket:"
	ticketMetricsKind    = "officialaccount_ticket"
)

type TicketType string

const (
	TicketTypeJSAPI  TicketType = "jsapi"
	TicketTypeWxCard TicketType = "wx_card"
)

var ticketTypes = []TicketType{TicketTypeJSAPI, TicketTypeWxCard}

type GetTicketRequest struct {
	// Type 默认 jsapi
	Type TicketType
}

type getTicketAPIResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// initTickets 每种 ticket 一个 TokenManager，与 access_token 共用缓存与并发合并逻辑
func (c *Client) initTickets() error {
	c.tickets = make(map[TicketType]*core.TokenManager, len(ticketTypes))
	for _, ticketType := range ticketTypes {
		manager, err := core.NewTokenManager(core.TokenManagerConfig{
			Cache:        c.cfg.Cache,
			CacheKey:     ticketCacheKeyPrefix + c.cfg.AppID + ":" + string(ticketType),
			Fetcher:      c.ticketFetcher(ticketType),
			Kind:         ticketMetricsKind,
			Logger:       c.tenant.Client.Logger(),
			Metrics:      c.cfg.Metrics,
			ExpireBuffer: c.cfg.ExpireBuffer,
			MintTimeout:  c.cfg.MintTimeout,
		})
		if err != nil {
			return fmt.Errorf("create %s ticket manager: %w", ticketType, err)
		}
		c.tickets[ticketType] = manager
	}
	return nil
}

func (c *Client) ticketFetcher(ticketType TicketType) core.TokenFetcher {
	return func(ctx context.Context) (core.TokenFetchResult, error) {
		resp, err := Request[getTicketAPIResponse](c).
			Path(getTicketPath).
			Query("type", string(ticketType)).
			Get(ctx)
		if err != nil {
			return core.TokenFetchResult{}, fmt.Errorf("get ticket: %w", err)
		}
		if resp.Ticket == "" {
			return core.TokenFetchResult{}, fmt.Errorf("empty ticket in response")
		}
		return core.TokenFetchResult{Token: resp.Ticket, ExpiresIn: resp.ExpiresIn}, nil
	}
}

func (c *Client) ticketManager(ticketType TicketType) (*core.TokenManager, error) {
	if ticketType == "" {
		ticketType = TicketTypeJSAPI
	}
	manager, ok := c.tickets[ticketType]
	if !ok {
		return nil, fmt.Errorf("unsupported ticket type: %s", ticketType)
	}
	return manager, nil
}

// GetTicket 获取 jsapi / wx_card ticket，缓存命中时不发请求
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/OA_Web_Apps/JS-SDK.html#62
func (c *Client) GetTicket(ctx context.Context, req GetTicketRequest) (string, error) {
	manager, err := c.ticketManager(req.Type)
	if err != nil {
		return "", err
	}
	return manager.GetToken(ctx)
}

// RefreshTicket 丢弃缓存的 ticket 并重新获取
func (c *Client) RefreshTicket(ctx context.Context, ticketType TicketType) (string, error) {
	manager, err := c.ticketManager(ticketType)
	if err != nil {
		return "", err
	}
	return manager.RefreshToken(ctx)
}
