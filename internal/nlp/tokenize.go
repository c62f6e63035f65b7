package nlp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer reduces a lower-cased word to its base form.
type Lemmatizer interface {
	Lemma(word string) string
}

type dictionaryLemmatizer struct {
	lem *golem.Lemmatizer
}

// NewDictionaryLemmatizer loads the embedded English lemma dictionary.
// Loading takes a noticeable amount of memory, so build it once per process.
func NewDictionaryLemmatizer() (Lemmatizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("failed to load english lemma dictionary: %w", err)
	}
	return &dictionaryLemmatizer{lem: lem}, nil
}

func (d *dictionaryLemmatizer) Lemma(word string) string {
	if l := d.lem.Lemma(word); l != "" {
		return l
	}
	return word
}

// SuffixLemmatizer strips regular English noun plurals. Extractors built
// without WithLemmatizer use it, which keeps tests independent of
// dictionary contents.
type SuffixLemmatizer struct{}

func (SuffixLemmatizer) Lemma(w string) string {
	n := len(w)
	if n <= 3 {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ies") && n > 4:
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "sses"),
		strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "zes"),
		strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "shes"):
		return w[:n-2]
	case strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") &&
		!strings.HasSuffix(w, "us") &&
		!strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:'\p{L}+)?`)

// token is a word as written plus its lemma.
type token struct {
	raw   string
	lemma string
}

func (t token) alnum() bool {
	return !strings.ContainsRune(t.raw, '\'')
}

func tokenize(text string, lem Lemmatizer) []token {
	lower := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	words := wordPattern.FindAllString(lower, -1)
	out := make([]token, 0, len(words))
	for _, w := range words {
		out = append(out, token{raw: w, lemma: lem.Lemma(w)})
	}
	return out
}

// contentLemmas keeps alphanumeric, non-stop-word tokens.
func contentLemmas(tokens []token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !t.alnum() || isStopWord(t.raw) {
			continue
		}
		out = append(out, t.lemma)
	}
	return out
}

func countMatches(tokens []token, words map[string]struct{}) int {
	n := 0
	for _, t := range tokens {
		if _, ok := words[t.raw]; ok {
			n++
			continue
		}
		if _, ok := words[t.lemma]; ok {
			n++
		}
	}
	return n
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// English stop words, the common NLTK list.
var stopWords = wordSet(
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're",
	"you've", "you'll", "you'd", "your", "yours", "yourself", "yourselves", "he",
	"him", "his", "himself", "she", "she's", "her", "hers", "herself", "it", "it's",
	"its", "itself", "they", "them", "their", "theirs", "themselves", "what",
	"which", "who", "whom", "this", "that", "that'll", "these", "those", "am", "is",
	"are", "was", "were", "be", "been", "being", "have", "has", "had", "having",
	"do", "does", "did", "doing", "a", "an", "the", "and", "but", "if", "or",
	"because", "as", "until", "while", "of", "at", "by", "for", "with", "about",
	"against", "between", "into", "through", "during", "before", "after", "above",
	"below", "to", "from", "up", "down", "in", "out", "on", "off", "over", "under",
	"again", "further", "then", "once", "here", "there", "when", "where", "why",
	"how", "all", "any", "both", "each", "few", "more", "most", "other", "some",
	"such", "no", "nor", "not", "only", "own", "same", "so", "than", "too", "very",
	"s", "t", "can", "will", "just", "don", "don't", "should", "should've", "now",
	"d", "ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn",
	"couldn't", "didn", "didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn",
	"hasn't", "haven", "haven't", "isn", "isn't", "ma", "mightn", "mightn't",
	"mustn", "mustn't", "needn", "needn't", "shan", "shan't", "shouldn",
	"shouldn't", "wasn", "wasn't", "weren", "weren't", "won", "won't", "wouldn",
	"wouldn't",
)
