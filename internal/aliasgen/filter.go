package aliasgen

import "strings"

// Filter 判断候选 token 是否可以使用，可替换为其他策略。
type Filter interface {
	Allowed(token string) bool
}

// DefaultDenylist 默认屏蔽的不当词汇
var DefaultDenylist = []string{"fuck", "shit", "damn", "porn", "nazi", "kill"}

// WordFilter 基于子串匹配的屏蔽词过滤，区分大小写。
type WordFilter struct {
	words []string
}

// NewWordFilter 创建屏蔽词过滤器，words 为空时使用默认列表。
func NewWordFilter(words ...string) *WordFilter {
	if len(words) == 0 {
		words = DefaultDenylist
	}
	list := make([]string, len(words))
	copy(list, words)
	return &WordFilter{words: list}
}

// Allowed 不包含任何屏蔽词时返回 true
func (f *WordFilter) Allowed(token string) bool {
	for _, w := range f.words {
		if w != "" && strings.Contains(token, w) {
			return false
		}
	}
	return true
}

// FilterFunc 允许用普通函数作为过滤策略
type FilterFunc func(token string) bool

// Allowed 调用函数本身
func (f FilterFunc) Allowed(token string) bool { return f(token) }
