package dto

// WeChatTextMessage is the enterprise WeChat group robot payload.
type WeChatTextMessage struct {
	MsgType string         `json:"msgtype"`
	Text    WeChatTextBody `json:"text"`
}

type WeChatTextBody struct {
	Content string `json:"content"`
}

func NewWeChatTextMessage(content string) WeChatTextMessage {
	return WeChatTextMessage{
		MsgType: "text",
		Text: WeChatTextBody{
			Content: content,
		},
	}
}

// WeChatResponse is the robot API answer. The endpoint reports errors with
// HTTP 200 and a non zero errcode.
type WeChatResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}
