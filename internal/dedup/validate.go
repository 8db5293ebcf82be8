// Package dedup decides whether new text is already known, supersedes stored
// records, or should be merged with its nearest neighbors.
package dedup

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidContent is returned for text that fails the validity filter.
var ErrInvalidContent = errors.New("invalid memory content")

// MinContentRunes is the shortest accepted content after trimming.
const MinContentRunes = 3

// blacklist holds "no information" answers, compared case-insensitively.
var blacklist = map[string]bool{
	"(无内容)": true, "无内容": true, "暂无内容": true, "没有内容": true,
	"无": true, "没有": true, "暂无": true, "未知": true, "空": true,
	"无可奉告": true, "未提供": true, "未提及": true, "无信息": true,
	"用户未": true, "没有提供": true, "未说明": true, "未告知": true,
	"null": true, "none": true, "empty": true, "n/a": true, "na": true,
	"nothing": true, "no information": true, "unknown": true,
}

// analyticalPrefixes mark meta-commentary about a conversation rather than a fact.
var analyticalPrefixes = []string{
	"这是", "属于", "符合", "不符合", "分析", "结论", "从对话中",
	"用户表示", "用户提供", "用户说",
	"this is", "analysis", "conclusion", "based on the conversation", "the user said",
}

// Validate reports whether text is worth storing.
func Validate(text string) error {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < MinContentRunes {
		return ErrInvalidContent
	}

	lower := strings.ToLower(t)
	if blacklist[lower] {
		return ErrInvalidContent
	}
	for _, p := range analyticalPrefixes {
		if hasPrefixWord(lower, p) {
			return ErrInvalidContent
		}
	}

	for _, r := range t {
		if unicode.IsLetter(r) {
			return nil
		}
	}
	return ErrInvalidContent
}

// hasPrefixWord reports whether s starts with prefix. A Latin prefix must end
// on a word boundary, so "this island" does not match "this is".
func hasPrefixWord(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(prefix)
	if last >= utf8.RuneSelf {
		return true
	}
	next, _ := utf8.DecodeRuneInString(s[len(prefix):])
	return next == utf8.RuneError || !(unicode.IsLetter(next) || unicode.IsDigit(next))
}

// IsValid is Validate as a predicate.
func IsValid(text string) bool {
	return Validate(text) == nil
}
