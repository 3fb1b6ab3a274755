package service

import "regexp"

// 消息内容策略：禁止在匿名会话里投递可定位到外部身份的内容
// 命中即把消息退回发送方，不转发也不结束会话
var (
	urlPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	domainPattern = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9-]*\.(?:com|net|org|io|me|ru|cn)\b`)
	handlePattern = regexp.MustCompile(`@[A-Za-z0-9_]{3,}`)
)

// violatesContentPolicy 判断消息是否包含链接、域名或 @句柄
func violatesContentPolicy(content string) bool {
	return urlPattern.MatchString(content) ||
		domainPattern.MatchString(content) ||
		handlePattern.MatchString(content)
}
