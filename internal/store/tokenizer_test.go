package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText_BasicWords(t *testing.T) {
	tokens := TokenizeText("Hello World")
	assert.Equal(t, []string{"hello", "world"}, tokens)
}

func TestTokenizeText_DropsShortTokens(t *testing.T) {
	tokens := TokenizeText("a bb c dd")
	assert.Equal(t, []string{"bb", "dd"}, tokens)
}

func TestTokenizeText_Punctuation(t *testing.T) {
	tokens := TokenizeText("search-engine, two_phase; (chunks)")
	assert.Equal(t, []string{"search", "engine", "two", "phase", "chunks"}, tokens)
}

func TestTokenizeText_Numbers(t *testing.T) {
	tokens := TokenizeText("version 2.0 build 42")
	assert.Equal(t, []string{"version", "build", "42"}, tokens)
}

func TestTokenizeText_HanBigrams(t *testing.T) {
	tokens := TokenizeText("中文搜索")
	assert.Equal(t, []string{"中文", "文搜", "搜索"}, tokens)
}

func TestTokenizeText_SingleHanChar(t *testing.T) {
	tokens := TokenizeText("好")
	assert.Equal(t, []string{"好"}, tokens)
}

func TestTokenizeText_MixedScripts(t *testing.T) {
	tokens := TokenizeText("golang 搜索 engine")
	assert.Equal(t, []string{"golang", "搜索", "engine"}, tokens)
}

func TestTokenizeText_Empty(t *testing.T) {
	assert.Empty(t, TokenizeText(""))
	assert.Empty(t, TokenizeText("   \n\t  "))
}

func TestFilterStopWords(t *testing.T) {
	stopWords := BuildStopWordMap([]string{"the", "is"})
	tokens := FilterStopWords([]string{"the", "index", "is", "ready"}, stopWords)
	assert.Equal(t, []string{"index", "ready"}, tokens)
}

func TestFilterStopWords_CaseInsensitive(t *testing.T) {
	stopWords := BuildStopWordMap([]string{"THE"})
	tokens := FilterStopWords([]string{"The", "Index"}, stopWords)
	assert.Equal(t, []string{"Index"}, tokens)
}

func TestBuildStopWordMap(t *testing.T) {
	m := BuildStopWordMap([]string{"A", "b"})
	_, hasA := m["a"]
	_, hasB := m["b"]
	assert.True(t, hasA)
	assert.True(t, hasB)
	assert.Len(t, m, 2)
}
