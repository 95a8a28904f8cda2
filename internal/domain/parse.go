package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RelapseSignal is a structured relapse report recognized in free text,
// e.g. "Beer 350ml x 5".
type RelapseSignal struct {
	Substance string // lowercase, e.g. "beer"
	VolumeML  int    // 0 when the text carried no volume token
	Count     int    // defaults to 1
}

var titler = cases.Title(language.English)

// Describe renders the signal the way it is echoed back to the user and
// written into log lines, e.g. "Beer 350ml x 5".
func (s RelapseSignal) Describe() string {
	name := titler.String(s.Substance)
	if s.VolumeML > 0 {
		return fmt.Sprintf("%s %dml x %d", name, s.VolumeML, s.Count)
	}
	return fmt.Sprintf("%s x %d", name, s.Count)
}

// Vocabulary is the data the parser matches against. It lives in the embedded
// assets so that new substances or phrases can be added without touching
// control flow.
type Vocabulary struct {
	Substances     []string `json:"substances"`      // drink names, lowercase
	CravingPhrases []string `json:"craving_phrases"` // multilingual, matched as substrings
}

// Parser detects relapse reports and craving intent in free text.
// It is pure and safe for concurrent use.
type Parser struct {
	drink   *regexp.Regexp
	phrases []string
}

// NewParser compiles the drink pattern from the vocabulary. The pattern
// accepts an optional "<digits>ml" volume and an optional count written as
// "x<digits>", "×<digits>" or bare trailing digits.
func NewParser(v Vocabulary) *Parser {
	names := make([]string, 0, len(v.Substances))
	for _, s := range v.Substances {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, regexp.QuoteMeta(strings.ToLower(s)))
		}
	}
	if len(names) == 0 {
		names = []string{"alcohol"}
	}
	pattern := `(?i)\b(` + strings.Join(names, "|") + `)\b\s*(?:(\d+)\s*ml\b)?\s*(?:[x×*]\s*(\d+)|(\d+)\b)?`

	phrases := make([]string, 0, len(v.CravingPhrases))
	for _, p := range v.CravingPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	return &Parser{
		drink:   regexp.MustCompile(pattern),
		phrases: phrases,
	}
}

// Parse classifies text. It returns a non-nil RelapseSignal when a drink
// report matched, or craving=true when only a craving phrase matched.
// A relapse report takes precedence over a craving phrase appearing in the
// same message. Neither matching means the caller should fall back to
// command or help handling.
func (p *Parser) Parse(text string) (signal *RelapseSignal, craving bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if m := p.drink.FindStringSubmatch(text); m != nil {
		sig := &RelapseSignal{
			Substance: strings.ToLower(m[1]),
			Count:     1,
		}
		if m[2] != "" {
			sig.VolumeML, _ = strconv.Atoi(m[2])
		}
		if m[3] != "" {
			sig.Count, _ = strconv.Atoi(m[3])
		} else if m[4] != "" {
			sig.Count, _ = strconv.Atoi(m[4])
		}
		if sig.Count < 1 {
			sig.Count = 1
		}
		return sig, false
	}

	lower := strings.ToLower(text)
	for _, phrase := range p.phrases {
		if strings.Contains(lower, phrase) {
			return nil, true
		}
	}
	return nil, false
}
