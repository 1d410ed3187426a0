package payment

import (
	"context"
	"fmt"
	"maps"
	"strconv"
)

const (
	refundPath        = "secapi/pay/refund"
	sandboxRefundPath = "pay/refund"
	refundQueryPath   = "pay/refundquery"
)

// RefundByOutTradeNumber 按商户订单号申请退款，需要商户证书
func (c *Client) RefundByOutTradeNumber(ctx context.Context, outTradeNo, outRefundNo string, totalFee, refundFee int, optional map[string]string) (map[string]string, error) {
	if outTradeNo == "" {
		return nil, fmt.Errorf("out_trade_no is required")
	}
	return c.refund(ctx, outRefundNo, totalFee, refundFee, optional, "out_trade_no", outTradeNo)
}

// RefundByTransactionID 按微信订单号申请退款，需要商户证书
func (c *Client) RefundByTransactionID(ctx context.Context, transactionID, outRefundNo string, totalFee, refundFee int, optional map[string]string) (map[string]string, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transaction_id is required")
	}
	return c.refund(ctx, outRefundNo, totalFee, refundFee, optional, "transaction_id", transactionID)
}

func (c *Client) refund(ctx context.Context, outRefundNo string, totalFee, refundFee int, optional map[string]string, idField, id string) (map[string]string, error) {
	if outRefundNo == "" {
		return nil, fmt.Errorf("out_refund_no is required")
	}
	if totalFee <= 0 || refundFee <= 0 || refundFee > totalFee {
		return nil, fmt.Errorf("invalid refund amount: total_fee=%d refund_fee=%d", totalFee, refundFee)
	}

	params := make(map[string]string, len(optional)+5)
	maps.Copy(params, optional)
	params["out_refund_no"] = outRefundNo
	params["total_fee"] = strconv.Itoa(totalFee)
	params["refund_fee"] = strconv.Itoa(refundFee)
	params[idField] = id

	// 仿真环境只接受 pay/refund
	endpoint := refundPath
	if c.cfg.Sandbox {
		endpoint = sandboxRefundPath
	}
	return c.Do(ctx, Request{Endpoint: endpoint, Params: params, ClientCert: true})
}

func (c *Client) QueryByTransactionID(ctx context.Context, transactionID string) (map[string]string, error) {
	return c.queryRefund(ctx, "transaction_id", transactionID)
}

func (c *Client) QueryByOutTradeNumber(ctx context.Context, outTradeNo string) (map[string]string, error) {
	return c.queryRefund(ctx, "out_trade_no", outTradeNo)
}

func (c *Client) QueryByOutRefundNumber(ctx context.Context, outRefundNo string) (map[string]string, error) {
	return c.queryRefund(ctx, "out_refund_no", outRefundNo)
}

func (c *Client) QueryByRefundID(ctx context.Context, refundID string) (map[string]string, error) {
	return c.queryRefund(ctx, "refund_id", refundID)
}

// queryRefund 查询退款，四种单号任选其一
func (c *Client) queryRefund(ctx context.Context, field, value string) (map[string]string, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	return c.Do(ctx, Request{Endpoint: refundQueryPath, Params: map[string]string{field: value}})
}
