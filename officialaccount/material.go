package officialaccount

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	boardingPassCheckinPath = "/card/boardingpass/checkin"
	shakeAroundMaterialPath = "/shakearound/material/add"
)

// BoardingPassCheckin 更新飞机票登机信息，params 为完整请求体（code、card_id、passenger_name 等）
func (c *Client) BoardingPassCheckin(ctx context.Context, params map[string]any) error {
	if len(params) == 0 {
		return fmt.Errorf("params are required")
	}
	return c.Post(ctx, boardingPassCheckinPath, params, nil)
}

type ShakeAroundImage struct {
	PicURL string `json:"pic_url"`
}

type shakeAroundMaterialResponse struct {
	Data ShakeAroundImage `json:"data"`
}

// UploadShakeAroundImage 上传摇一摇图片素材，imageType 为 icon 或 license
func (c *Client) UploadShakeAroundImage(ctx context.Context, imageType, fileName string, image io.Reader) (*ShakeAroundImage, error) {
	if image == nil {
		return nil, fmt.Errorf("image is required")
	}
	if imageType == "" {
		imageType = "icon"
	}
	resp, err := Request[shakeAroundMaterialResponse](c).
		Path(shakeAroundMaterialPath).
		Query("type", strings.ToLower(imageType)).
		UploadFile("media", fileName, image).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
