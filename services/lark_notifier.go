package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"live-fixture-service/logger"
)

// LarkNotifier 飞书机器人通知器, 用于操作员告警
type LarkNotifier struct {
	webhookURL string
	client     *http.Client
	enabled    bool
	now        func() time.Time
}

// NewLarkNotifier 创建飞书通知器
func NewLarkNotifier(webhookURL string) *LarkNotifier {
	enabled := webhookURL != ""
	if enabled {
		logger.Printf("[LarkNotifier] Initialized with webhook")
	} else {
		logger.Printf("[LarkNotifier] Disabled (no webhook URL)")
	}

	return &LarkNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		enabled:    enabled,
		now:        time.Now,
	}
}

// LarkMessage 飞书消息结构
type LarkMessage struct {
	MsgType string      `json:"msg_type"`
	Content interface{} `json:"content"`
}

// LarkTextContent 文本消息内容
type LarkTextContent struct {
	Text string `json:"text"`
}

// LarkPostContent 富文本消息内容
type LarkPostContent struct {
	Post LarkPost `json:"post"`
}

type LarkPost struct {
	ZhCn LarkPostLang `json:"zh_cn"`
}

type LarkPostLang struct {
	Title   string          `json:"title"`
	Content [][]LarkElement `json:"content"`
}

type LarkElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
}

// SendText 发送文本消息
func (n *LarkNotifier) SendText(text string) error {
	if !n.enabled {
		return nil
	}
	return n.send(LarkMessage{
		MsgType: "text",
		Content: LarkTextContent{Text: text},
	})
}

// SendRichText 发送富文本消息
func (n *LarkNotifier) SendRichText(title string, content [][]LarkElement) error {
	if !n.enabled {
		return nil
	}
	return n.send(LarkMessage{
		MsgType: "post",
		Content: LarkPostContent{
			Post: LarkPost{
				ZhCn: LarkPostLang{
					Title:   title,
					Content: content,
				},
			},
		},
	})
}

func (n *LarkNotifier) send(message LarkMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// NotifyServiceStart 通知服务启动
func (n *LarkNotifier) NotifyServiceStart(environment string, sinks []string) error {
	content := [][]LarkElement{
		{{Tag: "text", Text: "🚀 服务启动\n"}},
		{{Tag: "text", Text: fmt.Sprintf("环境: %s\n", environment)}},
		{{Tag: "text", Text: fmt.Sprintf("推送: %v\n", sinks)}},
		{{Tag: "text", Text: fmt.Sprintf("时间: %s", n.timestamp())}},
	}
	return n.SendRichText("Live Fixture Service Started", content)
}

// AlertPartialFailure 账本与聚合写入不一致, 需要人工核对
func (n *LarkNotifier) AlertPartialFailure(fixtureID, action string, err error) error {
	content := [][]LarkElement{
		{{Tag: "text", Text: "🚨 数据不一致\n"}},
		{{Tag: "text", Text: fmt.Sprintf("比赛: %s\n", fixtureID)}},
		{{Tag: "text", Text: fmt.Sprintf("操作: %s\n", action)}},
		{{Tag: "text", Text: fmt.Sprintf("错误: %v\n", err)}},
		{{Tag: "text", Text: "💡 核对比分后执行 reconcile\n"}},
		{{Tag: "text", Text: fmt.Sprintf("时间: %s", n.timestamp())}},
	}
	return n.SendRichText("Partial Failure", content)
}

// AlertError 通知错误
func (n *LarkNotifier) AlertError(component, message string) error {
	content := [][]LarkElement{
		{{Tag: "text", Text: "❌ 错误\n"}},
		{{Tag: "text", Text: fmt.Sprintf("组件: %s\n", component)}},
		{{Tag: "text", Text: fmt.Sprintf("消息: %s\n", message)}},
		{{Tag: "text", Text: fmt.Sprintf("时间: %s", n.timestamp())}},
	}
	return n.SendRichText("Error Alert", content)
}

func (n *LarkNotifier) timestamp() string {
	return n.now().Format("2006-01-02 15:04:05")
}
