package service

import (
	"fmt"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/gateway"
)

const (
	clickAction = "FLUTTER_NOTIFICATION_CLICK"

	// DefaultDailyTitle is the title of every daily recommendation push.
	DefaultDailyTitle = "🌟 A health tip for you"
	DefaultScheme     = "healthtips"
	DefaultBatchSize  = 5

	commentPreviewRunes = 100
	anonymousCommenter  = "Someone"
	anonymousPublisher  = "Admin"
)

// Android notification channels, one per notification type.
const (
	channelRecommendations = "recommendations"
	channelComments        = "comments"
	channelNewTips         = "new_tips"
)

// Options configures message content and batch sizing.
type Options struct {
	MaxBatchSize   int
	DailyTitle     string
	DeepLinkScheme string
}

func (o Options) withDefaults() Options {
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = DefaultBatchSize
	}
	if o.DailyTitle == "" {
		o.DailyTitle = DefaultDailyTitle
	}
	if o.DeepLinkScheme == "" {
		o.DeepLinkScheme = DefaultScheme
	}
	return o
}

func (o Options) tipLink(id string) string {
	return fmt.Sprintf("%s://tip/%s", o.DeepLinkScheme, id)
}

func dailyMessage(o Options, token string, c *domain.Candidate) *gateway.Message {
	return &gateway.Message{
		Token: token,
		Title: o.DailyTitle,
		Body:  c.Title,
		Data: map[string]string{
			"type":         string(domain.TypeDailyRecommendation),
			"healthTipId":  c.ID,
			"category":     c.Category,
			"deepLink":     o.tipLink(c.ID),
			"click_action": clickAction,
		},
		Android: gateway.AndroidConfig{
			Priority:  gateway.PriorityNormal,
			ChannelID: channelRecommendations,
			Color:     "#FFC107",
		},
	}
}

func commentReplyMessage(o Options, token, commenter string, req *domain.CommentReplyRequest) *gateway.Message {
	return &gateway.Message{
		Token: token,
		Title: fmt.Sprintf("💬 %s commented", commenter),
		Body:  `"` + truncateRunes(req.Content, commentPreviewRunes) + `"`,
		Data: map[string]string{
			"type":         string(domain.TypeCommentReply),
			"healthTipId":  req.HealthTipID,
			"commentId":    req.CommentID,
			"deepLink":     o.tipLink(req.HealthTipID) + "?highlight=comment_" + req.CommentID,
			"click_action": clickAction,
		},
		Android: gateway.AndroidConfig{
			Priority:  gateway.PriorityHigh,
			ChannelID: channelComments,
			Color:     "#4CAF50",
		},
	}
}

func newTipMessage(o Options, tokens []string, publisher string, req *domain.NewContentRequest) *gateway.MulticastMessage {
	return &gateway.MulticastMessage{
		Tokens: tokens,
		Title:  fmt.Sprintf("🆕 New health tip from %s", publisher),
		Body:   req.Title,
		Data: map[string]string{
			"type":         string(domain.TypeNewHealthTip),
			"healthTipId":  req.HealthTipID,
			"category":     req.Category,
			"deepLink":     o.tipLink(req.HealthTipID),
			"click_action": clickAction,
		},
		Android: gateway.AndroidConfig{
			Priority:  gateway.PriorityHigh,
			ChannelID: channelNewTips,
			Color:     "#2196F3",
		},
	}
}

// truncateRunes cuts s to n runes and appends "..." when anything was cut.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
