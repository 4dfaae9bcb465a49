package enrich

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
	govader "github.com/jonreiter/govader"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/record"
)

// Analyzer scores free text and extracts noun phrases. Scores are
// deterministic: the same text always yields the same sentiment pair and
// phrase list.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// NewAnalyzer creates a text analyzer with the default lexicon
func NewAnalyzer() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Score computes the sentiment pair for one text.
// Polarity is the compound valence score in [-1, 1]. Subjectivity is the
// non-neutral proportion of the text in [0, 1].
func (a *Analyzer) Score(text string) record.Sentiment {
	scores := a.vader.PolarityScores(text)

	subjectivity := 1 - scores.Neutral
	if subjectivity < 0 {
		subjectivity = 0
	}
	if subjectivity > 1 {
		subjectivity = 1
	}

	return record.Sentiment{
		Polarity:     scores.Compound,
		Subjectivity: subjectivity,
	}
}

// NounPhrases extracts lowercased noun phrases in text order. A phrase is
// a maximal run of adjective/noun tokens containing at least one noun.
func (a *Analyzer) NounPhrases(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Analyzer", "NounPhrases", "text tagging")
	}

	phrases := []string{}
	var run []string
	hasNoun := false

	flush := func() {
		if hasNoun && len(run) > 0 {
			phrases = append(phrases, strings.ToLower(strings.Join(run, " ")))
		}
		run = run[:0]
		hasNoun = false
	}

	for _, token := range doc.Tokens() {
		switch {
		case isNounTag(token.Tag):
			run = append(run, token.Text)
			hasNoun = true
		case isAdjectiveTag(token.Tag):
			run = append(run, token.Text)
		default:
			flush()
		}
	}
	flush()

	return phrases, nil
}

func isNounTag(tag string) bool {
	switch tag {
	case "NN", "NNS", "NNP", "NNPS":
		return true
	}
	return false
}

func isAdjectiveTag(tag string) bool {
	switch tag {
	case "JJ", "JJR", "JJS":
		return true
	}
	return false
}
