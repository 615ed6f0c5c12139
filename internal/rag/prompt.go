package rag

import (
	"strconv"
	"strings"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"golang.org/x/text/language"
)

// messages holds the user-facing strings for one answer language.
type messages struct {
	Tag            language.Tag
	SystemRole     string
	PromptTemplate string
	NotFound       string
	FallbackHeader string
}

var catalog = []messages{
	{
		Tag:        language.Japanese,
		SystemRole: "あなたは業務アシスタントです。",
		PromptTemplate: `あなたは業務アシスタントです。
以下の「参照情報」に基づいてのみ回答してください。
参照情報に書かれていない内容は「分かりません」と答えてください。

【参照情報】
{context}

【質問】
{question}
`,
		NotFound:       "参照情報が見つかりませんでした。",
		FallbackHeader: "以下の参照情報が見つかりました：\n",
	},
	{
		Tag:        language.English,
		SystemRole: "You are a business assistant.",
		PromptTemplate: `You are a business assistant.
Answer only from the "Reference information" below.
If the reference information does not contain the answer, reply "I don't know".

[Reference information]
{context}

[Question]
{question}
`,
		NotFound:       "No reference information was found.",
		FallbackHeader: "The following reference information was found:\n",
	},
}

var matcher = language.NewMatcher([]language.Tag{language.Japanese, language.English})

// messagesFor picks the closest supported language. Unknown or malformed
// tags fall back to Japanese.
func messagesFor(lang string) messages {
	tag, err := language.Parse(lang)
	if err != nil {
		return catalog[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return catalog[0]
	}
	return catalog[idx]
}

func (m messages) prompt(context, question string) string {
	r := strings.NewReplacer("{context}", context, "{question}", question)
	return r.Replace(m.PromptTemplate)
}

func pageSuffix(page *int) string {
	if page == nil {
		return ""
	}
	return " (page " + strconv.Itoa(*page) + ")"
}

// buildContext renders results as "[filename (page p)]\nchunk" blocks in rank order.
func buildContext(results []commonModels.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, "["+r.Filename+pageSuffix(r.Page)+"]\n"+r.Chunk)
	}
	return strings.Join(parts, "\n\n")
}

// fallbackAnswer lists the retrieved chunks without a model.
func (m messages) fallbackAnswer(results []commonModels.SearchResult) string {
	if len(results) == 0 {
		return m.NotFound
	}
	parts := make([]string, 0, 1+2*len(results))
	parts = append(parts, m.FallbackHeader)
	for _, r := range results {
		parts = append(parts, "["+strconv.Itoa(r.Index)+"] "+r.Filename+pageSuffix(r.Page))
		parts = append(parts, r.Chunk+"\n")
	}
	return strings.Join(parts, "\n")
}
