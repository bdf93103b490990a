package webhook

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Replier sends replies and loading indicators through the Messaging API.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages []messaging_api.MessageInterface) error
	ShowLoading(ctx context.Context, chatID string, seconds int32) error
}

// lineClient adapts the SDK client to Replier.
type lineClient struct {
	api *messaging_api.MessagingApiAPI
}

// NewLINEClient creates a Replier backed by the LINE Messaging API.
func NewLINEClient(channelToken string) (Replier, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &lineClient{api: api}, nil
}

func (c *lineClient) Reply(_ context.Context, replyToken string, messages []messaging_api.MessageInterface) error {
	_, err := c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	return err
}

// ShowLoading shows the typing indicator in a personal chat. LINE requires
// 5-60 seconds in multiples of 5.
func (c *lineClient) ShowLoading(_ context.Context, chatID string, seconds int32) error {
	_, err := c.api.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: seconds,
	})
	return err
}
