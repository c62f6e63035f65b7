package nlp

var styleKeywords = map[LearningStyle]map[string]struct{}{
	StyleVisual:         wordSet("see", "look", "view", "appear", "show", "picture", "image", "diagram"),
	StyleAuditory:       wordSet("hear", "listen", "sound", "tell", "discuss", "explain", "talk"),
	StyleReadingWriting: wordSet("read", "write", "note", "list", "text", "document", "book"),
	StyleKinesthetic:    wordSet("do", "feel", "touch", "hold", "experience", "practice", "try", "experiment"),
}

// StyleScores holds keyword hit counts per learning style.
type StyleScores map[LearningStyle]int

// DetectLearningStyle guesses a learner's style from free text such as a
// self-description. Stop words are kept because several indicators ("do",
// "show") are stop words. With no indicator present it returns
// StyleReadingWriting.
func (e *Extractor) DetectLearningStyle(text string) (LearningStyle, StyleScores) {
	tokens := tokenize(text, e.lemmatizer)
	scores := make(StyleScores, len(LearningStyles))
	for _, style := range LearningStyles {
		scores[style] = countMatches(tokens, styleKeywords[style])
	}

	best, bestScore := StyleReadingWriting, 0
	for _, style := range LearningStyles {
		if scores[style] > bestScore {
			best, bestScore = style, scores[style]
		}
	}
	return best, scores
}

// Confidence is the share of all keyword hits that went to style, or 0 when
// there were no hits.
func (s StyleScores) Confidence(style LearningStyle) float64 {
	total := 0
	for _, n := range s {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(s[style]) / float64(total)
}
