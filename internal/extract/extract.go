// Package extract pulls short-lived facts out of a user turn for working
// memory: named entities, the current topic and quoted keywords.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/tiered-memory/internal/chunker"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
)

// Priorities assigned by Rules.
const (
	KeywordPriority = 1
	EntityPriority  = 2
	TopicPriority   = 3
)

// Limits applied by Rules.
const (
	MinValueRunes = 2
	MaxValueRunes = 50
	TopicRunes    = 60
	MaxKeywords   = 3
)

// Fact is one working memory entry derived from a turn.
type Fact struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Priority int    `json:"priority"`
	Source   string `json:"source"`
}

// Extractor maps a user turn to working memory facts.
type Extractor interface {
	Extract(text string) []Fact
}

// Func adapts a plain function into an Extractor.
type Func func(text string) []Fact

func (f Func) Extract(text string) []Fact { return f(text) }

// Pattern captures an entity. The last non-empty submatch is the value.
type Pattern struct {
	Key string
	Re  *regexp.Regexp
}

const word = `[\p{L}\p{N}_+.#-]`

// DefaultPatterns cover personal details, projects, tools, preferences and
// times, in Chinese and English.
var DefaultPatterns = []Pattern{
	{"user_name", regexp.MustCompile(`我叫([^\s，。！？,]{2,10})`)},
	{"user_name", regexp.MustCompile(`我的(?:名字|姓名)是([^\s，。！？,]{2,10})`)},
	{"user_name", regexp.MustCompile(`(?i)\bmy name is (\p{L}[\p{L}'-]+)`)},
	{"user_role", regexp.MustCompile(`我是(\p{L}+?(?:工程师|设计师|经理|学生|老师|医生|程序员|开发者|分析师|架构师|专家|顾问))`)},
	{"user_role", regexp.MustCompile(`(?i)\bi(?:'m| am) an? ((?:\p{L}+ )?(?:engineer|designer|manager|student|teacher|doctor|developer|analyst|architect|consultant))\b`)},
	{"user_org", regexp.MustCompile(`我在(\p{L}+?(?:公司|学校|医院|团队|部门|集团))`)},
	{"user_org", regexp.MustCompile(`(?i)\bi work (?:at|for) (\p{Lu}[\p{L}\p{N}&.-]*(?: \p{Lu}[\p{L}\p{N}&.-]*)*)`)},
	{"project", regexp.MustCompile(`项目(?:叫|名叫|是)[「『"]?([^」』"\s，。]{2,20})`)},
	{"project", regexp.MustCompile(`(?i)\bproject (?:called|named) "?([\p{L}\p{N}_-]{2,30})`)},
	{"tool", regexp.MustCompile(`(?:使用|在用)(` + word + `{2,20})`)},
	{"tool", regexp.MustCompile(`(?i)\b(?:using|written in|built with) (` + word + `{2,20})`)},
	{"likes", regexp.MustCompile(`我喜欢(\p{L}{2,10})`)},
	{"likes", regexp.MustCompile(`(?i)\bi (?:like|love|enjoy) (\p{L}[\p{L} ]{1,30}?)(?:[.,!?]|$)`)},
	{"dislikes", regexp.MustCompile(`我讨厌(\p{L}{2,10})`)},
	{"dislikes", regexp.MustCompile(`(?i)\bi (?:hate|dislike) (\p{L}[\p{L} ]{1,30}?)(?:[.,!?]|$)`)},
	{"date", regexp.MustCompile(`(\d{1,2}月\d{1,2}[日号])`)},
	{"date", regexp.MustCompile(`(明天|后天|下周[一二三四五六日天]?)`)},
	{"date", regexp.MustCompile(`(?i)\b(tomorrow|tonight|next (?:week|monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`)},
	{"time", regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)},
	{"remember", regexp.MustCompile(`(?:记住|别忘了)[，:：]?\s*([^\s，。！？]{2,30})`)},
	{"remember", regexp.MustCompile(`(?i)\b(?:remember|don't forget)(?: that)?[,:]?\s+([^.!?]{2,49})`)},
}

var quoted = regexp.MustCompile(`["“「『]([^"”」』]{2,20})["”」』]`)

// Rules is the default regular-expression Extractor.
type Rules struct {
	Patterns []Pattern
}

// NewRules returns Rules with the default patterns.
func NewRules() *Rules {
	return &Rules{Patterns: DefaultPatterns}
}

// Extract returns entity facts, one topic fact keyed by the turn's content
// hash, and up to MaxKeywords quoted phrases.
func (r *Rules) Extract(text string) []Fact {
	text = strings.TrimSpace(text)
	var facts []Fact

	for _, p := range r.Patterns {
		for _, m := range p.Re.FindAllStringSubmatch(text, -1) {
			value := lastGroup(m)
			if !fits(value) {
				continue
			}
			facts = append(facts, Fact{Key: p.Key, Value: value, Priority: EntityPriority, Source: model.SourceExtracted})
		}
	}

	if topic := chunker.Truncate(text, TopicRunes); utf8.RuneCountInString(topic) >= 3 {
		facts = append(facts, Fact{
			Key:      "topic_" + embedding.ContentHash(text)[:8],
			Value:    topic,
			Priority: TopicPriority,
			Source:   model.SourceContext,
		})
	}

	for i, m := range quoted.FindAllStringSubmatch(text, MaxKeywords) {
		if v := strings.TrimSpace(m[1]); utf8.RuneCountInString(v) >= MinValueRunes {
			facts = append(facts, Fact{Key: fmt.Sprintf("keyword_%d", i), Value: v, Priority: KeywordPriority, Source: model.SourceKeyword})
		}
	}
	return facts
}

func lastGroup(m []string) string {
	for i := len(m) - 1; i > 0; i-- {
		if v := strings.TrimSpace(m[i]); v != "" {
			return v
		}
	}
	return ""
}

func fits(v string) bool {
	n := utf8.RuneCountInString(v)
	return n >= MinValueRunes && n < MaxValueRunes
}
