package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/model"
)

func byKey(facts []Fact) map[string]Fact {
	m := make(map[string]Fact, len(facts))
	for _, f := range facts {
		m[f.Key] = f
	}
	return m
}

func TestRulesExtractEntities(t *testing.T) {
	facts := byKey(NewRules().Extract("I am a software engineer. My name is Alice and I like green tea."))

	require.Contains(t, facts, "user_role")
	assert.Equal(t, "software engineer", facts["user_role"].Value)
	assert.Equal(t, EntityPriority, facts["user_role"].Priority)
	assert.Equal(t, model.SourceExtracted, facts["user_role"].Source)

	assert.Equal(t, "Alice", facts["user_name"].Value)
	assert.Equal(t, "green tea", facts["likes"].Value)
}

func TestRulesExtractChinese(t *testing.T) {
	facts := byKey(NewRules().Extract("我叫小明，我在阿里巴巴公司上班，明天10:30开会"))

	assert.Equal(t, "小明", facts["user_name"].Value)
	assert.Equal(t, "阿里巴巴公司", facts["user_org"].Value)
	assert.Equal(t, "明天", facts["date"].Value)
	assert.Equal(t, "10:30", facts["time"].Value)
}

func TestRulesTopicAndKeywords(t *testing.T) {
	text := `Let's compare "vector search" with "full text search" today`
	facts := NewRules().Extract(text)

	var topic *Fact
	var keywords []string
	for i, f := range facts {
		switch f.Source {
		case model.SourceContext:
			topic = &facts[i]
		case model.SourceKeyword:
			keywords = append(keywords, f.Value)
			assert.Equal(t, KeywordPriority, f.Priority)
		}
	}

	require.NotNil(t, topic)
	assert.Equal(t, TopicPriority, topic.Priority)
	assert.Equal(t, text, topic.Value)
	assert.Equal(t, []string{"vector search", "full text search"}, keywords)

	// The same turn always maps to the same topic key.
	again := NewRules().Extract(text)
	assert.Contains(t, again, *topic)
}

func TestRulesTopicTruncated(t *testing.T) {
	long := "this message keeps going well past the topic limit so that it has to be cut somewhere"
	for _, f := range NewRules().Extract(long) {
		if f.Source == model.SourceContext {
			assert.Equal(t, []rune(long)[:TopicRunes], []rune(f.Value))
			return
		}
	}
	t.Fatal("expected a topic fact")
}

func TestRulesShortTurnHasNoTopic(t *testing.T) {
	assert.Empty(t, NewRules().Extract("ok"))
}
