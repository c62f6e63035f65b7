package nlp

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// MaxTopics is the maximum number of topics returned by Extract.
	MaxTopics = 5
	// minTopicLength excludes short lemmas from topics.
	minTopicLength = 3
)

// Sentiment labels returned by classifiers.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// SentimentClassifier is a pretrained binary classifier. Confidence is in
// [0, 1].
type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}

// Features are the per-message values persisted with every conversation
// turn regardless of how the response was generated.
type Features struct {
	Topics     []string `json:"topics"`
	Sentiment  float64  `json:"sentiment_score"`
	Engagement float64  `json:"engagement_score"`
}

var (
	positiveWords = wordSet("good", "great", "excellent", "amazing", "wonderful",
		"fantastic", "helpful", "clear", "understand", "thanks")
	negativeWords = wordSet("bad", "poor", "terrible", "confusing", "unclear",
		"difficult", "hard", "not", "don't", "cannot")
	followUpWords = wordSet("more", "another", "example", "explain", "understand",
		"clarify", "continue")
)

// Extractor derives topics, sentiment and engagement from text.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	lemmatizer Lemmatizer
	classifier SentimentClassifier
	logger     *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLemmatizer sets the lemmatizer. The default is SuffixLemmatizer.
func WithLemmatizer(l Lemmatizer) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.lemmatizer = l
		}
	}
}

// WithSentimentClassifier enables the classifier path for sentiment.
func WithSentimentClassifier(c SentimentClassifier) ExtractorOption {
	return func(e *Extractor) {
		e.classifier = c
	}
}

// WithExtractorLogger sets the logger used to report classifier failures.
func WithExtractorLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		lemmatizer: SuffixLemmatizer{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes all features for text. It never fails.
func (e *Extractor) Extract(ctx context.Context, text string) Features {
	tokens := tokenize(text, e.lemmatizer)
	return Features{
		Topics:     topicsFrom(tokens),
		Sentiment:  e.sentiment(ctx, text, tokens),
		Engagement: engagement(text, tokens),
	}
}

// Topics returns up to MaxTopics lemmas longer than three characters, most
// frequent first, ties in order of first occurrence.
func (e *Extractor) Topics(text string) []string {
	return topicsFrom(tokenize(text, e.lemmatizer))
}

// Sentiment scores text in [-1, 1].
func (e *Extractor) Sentiment(ctx context.Context, text string) float64 {
	return e.sentiment(ctx, text, tokenize(text, e.lemmatizer))
}

// Engagement scores text in [0, 1].
func (e *Extractor) Engagement(text string) float64 {
	return engagement(text, tokenize(text, e.lemmatizer))
}

func topicsFrom(tokens []token) []string {
	lemmas := contentLemmas(tokens)
	counts := make(map[string]int, len(lemmas))
	order := make([]string, 0, len(lemmas))
	for _, l := range lemmas {
		if counts[l] == 0 {
			order = append(order, l)
		}
		counts[l]++
	}

	// Stable insertion sort by count keeps first-occurrence order on ties.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	// Short lemmas are skipped before the cap, so they never crowd out a
	// longer topic.
	topics := make([]string, 0, MaxTopics)
	for _, l := range order {
		if len(topics) == MaxTopics {
			break
		}
		if utf8.RuneCountInString(l) > minTopicLength {
			topics = append(topics, l)
		}
	}
	return topics
}

func (e *Extractor) sentiment(ctx context.Context, text string, tokens []token) float64 {
	if e.classifier != nil && strings.TrimSpace(text) != "" {
		label, confidence, err := e.classifier.Classify(ctx, text)
		if err == nil {
			confidence = clamp(confidence, 0, 1)
			if strings.EqualFold(label, LabelPositive) {
				return confidence
			}
			return -confidence
		}
		e.logger.Warn("sentiment_classifier_failed_using_keywords", zap.Error(err))
	}
	return keywordSentiment(tokens)
}

func keywordSentiment(tokens []token) float64 {
	pos := countMatches(tokens, positiveWords)
	neg := countMatches(tokens, negativeWords)
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func engagement(text string, tokens []token) float64 {
	length := min(float64(utf8.RuneCountInString(text))/100, 1.0)
	questions := min(float64(strings.Count(text, "?"))*0.2, 1.0)
	exclamations := min(float64(strings.Count(text, "!"))*0.1, 0.5)
	followUps := min(float64(countMatches(tokens, followUpWords))*0.2, 1.0)

	score := length*0.3 + questions*0.3 + exclamations*0.1 + followUps*0.3
	return min(score, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
