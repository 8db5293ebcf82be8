// Package classify assigns a category and an importance score to memory text.
package classify

import (
	"strings"

	"github.com/rcliao/tiered-memory/internal/model"
)

// Classifier maps text to a category and an importance in [0, 1].
type Classifier interface {
	Classify(text string) (category string, importance float64)
}

// Func adapts a plain function into a Classifier.
type Func func(text string) (string, float64)

func (f Func) Classify(text string) (string, float64) { return f(text) }

// Rule maps keywords to a category.
type Rule struct {
	Category string
	Keywords []string
}

// Importance levels used by Keyword.
const (
	BaseImportance    = 0.3
	MatchedImportance = 0.6
	MarkerBonus       = 0.3
)

// DefaultRules are checked in order; a later matching rule overrides an
// earlier one.
var DefaultRules = []Rule{
	{model.CategoryIdentity, []string{
		"我叫", "我的名字", "我是", "职业", "工作", "年龄", "岁", "住在", "地址",
		"my name is", "i am a", "i work as", "years old", "i live in",
	}},
	{model.CategoryPreference, []string{
		"喜欢", "爱好", "偏好", "讨厌", "厌恶", "最爱",
		"likes", "loves", "prefers", "hates", "favorite", "i like", "i prefer",
	}},
	{model.CategorySchedule, []string{
		"明天", "下周", "计划", "约定", "会议", "安排", "日程", "提醒我",
		"tomorrow", "next week", "meeting", "appointment", "remind me",
	}},
	{model.CategoryImportant, []string{
		"记住", "别忘了", "重要", "帮我记", "一定要",
		"remember", "don't forget", "important",
	}},
	{model.CategoryProject, []string{
		"项目", "正在做", "开发", "研究", "学习", "创作",
		"project", "working on", "developing", "studying", "learning",
	}},
}

// DefaultMarkers raise importance when present.
var DefaultMarkers = []string{"重要", "必须", "一定", "记住", "千万别", "important", "must", "never forget"}

// Keyword is a substring-matching classifier.
type Keyword struct {
	Rules   []Rule
	Markers []string
}

// NewKeyword returns a Keyword classifier with the default tables.
func NewKeyword() *Keyword {
	return &Keyword{Rules: DefaultRules, Markers: DefaultMarkers}
}

func (k *Keyword) Classify(text string) (string, float64) {
	lower := strings.ToLower(text)
	category := model.CategoryGeneral
	importance := BaseImportance

	for _, rule := range k.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				category = rule.Category
				importance = max(importance, MatchedImportance)
				break
			}
		}
	}

	for _, m := range k.Markers {
		if strings.Contains(lower, m) {
			importance = min(1.0, importance+MarkerBonus)
			break
		}
	}
	return category, importance
}
