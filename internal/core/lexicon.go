// ABOUTME: Mood lexicon content loaded from embedded YAML
// ABOUTME: Word lists, recommendations, and valence are data, swappable per deployment
package core

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harper/attune/internal/models"
)

//go:embed mood_lexicon.yaml
var defaultLexiconYAML []byte

// LabelTerms lists the words and multi-word phrases that signal a mood
type LabelTerms struct {
	Words   []string `yaml:"words"`
	Phrases []string `yaml:"phrases"`
}

// Lexicon is the text-mood vocabulary plus recommendation and valence tables
type Lexicon struct {
	Labels          map[models.MoodLabel]LabelTerms `yaml:"labels"`
	Intensifiers    []string                        `yaml:"intensifiers"`
	Recommendations map[models.MoodLabel]string     `yaml:"recommendations"`
	Valence         map[models.MoodLabel]int        `yaml:"valence"`

	// Localized maps a language code to recommendation overrides
	Localized map[string]map[models.MoodLabel]string `yaml:"localized_recommendations"`

	words        map[string][]models.MoodLabel
	intensifiers map[string]bool
}

// DefaultLexicon parses the embedded lexicon
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads a lexicon YAML file
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes and indexes lexicon YAML
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lx Lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	for label := range lx.Labels {
		if !validMood(label) {
			return nil, fmt.Errorf("lexicon: unknown mood label %q", label)
		}
	}
	lx.index()
	return &lx, nil
}

func (lx *Lexicon) index() {
	lx.words = map[string][]models.MoodLabel{}
	for _, label := range models.MoodLabels {
		for _, w := range lx.Labels[label].Words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				lx.words[w] = append(lx.words[w], label)
			}
		}
	}
	lx.intensifiers = map[string]bool{}
	for _, w := range lx.Intensifiers {
		lx.intensifiers[strings.ToLower(w)] = true
	}
}

// Recommendation returns the canned response for a label
func (lx *Lexicon) Recommendation(label models.MoodLabel) string {
	if r, ok := lx.Recommendations[label]; ok {
		return r
	}
	return lx.Recommendations[models.MoodNeutral]
}

// RecommendationIn returns the response for a label in the given language,
// falling back to the default table when the language has no entry.
func (lx *Lexicon) RecommendationIn(label models.MoodLabel, language string) string {
	table, ok := lx.Localized[languageCode(language)]
	if !ok {
		return lx.Recommendation(label)
	}
	if r, ok := table[label]; ok {
		return r
	}
	if r, ok := table[models.MoodNeutral]; ok {
		return r
	}
	return lx.Recommendation(label)
}

// languageCode reduces "ur-PK", "UR" or "urdu" style tags to a short code
func languageCode(language string) string {
	code := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if code == "urdu" {
		return "ur"
	}
	return code
}

func validMood(label models.MoodLabel) bool {
	for _, l := range models.MoodLabels {
		if l == label {
			return true
		}
	}
	return false
}
