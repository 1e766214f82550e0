package verbal

import (
	"strings"
	"unicode"
)

// Phrase lists are matched by case-insensitive substring containment against
// the whole segment, not per token. An entry that is a substring of another
// ("may" inside "maybe") therefore counts independently, and duplicated
// entries count twice. This is the scoring behavior callers depend on; do not
// switch to token matching.
var confidentPhrases = []string{
	"sure", "definitely", "absolutely", "certainly", "no doubt", "confident",
	"positive", "clearly", "without question", "undoubtedly", "I know",
	"I'm certain", "I'm sure", "exactly", "precisely", "obviously", "indeed",
	"of course", "absolutely", "strongly believe", "convinced", "guarantee",
	"assure", "confident", "without hesitation", "firmly", "decisive",
	"assertive", "knowledgeable", "expert", "mastery", "deep understanding",
	"extensive experience", "solid evidence", "proven", "demonstrated",
	"verified", "validated", "confirmed",
}

var unconfidentPhrases = []string{
	"maybe", "perhaps", "possibly", "I think", "I guess", "sort of", "kind of",
	"I'm not sure", "I don't know", "um", "uh", "like", "hopefully", "probably",
	"might", "could be", "I suppose", "somewhat", "not really", "I'm trying",
	"nervous", "anxious", "worried", "confused", "hesitant", "unsure",
	"doubtful", "uncertain", "if possible", "it seems", "appears to be",
	"from what I understand", "correct me if I'm wrong", "this might not be right",
	"to some extent", "more or less", "basically", "approximately", "roughly",
	"almost", "barely", "hardly", "scarcely", "just a bit", "slightly",
	"not completely", "partially", "somehow", "in a way", "allegedly",
	"would", "could", "may", "might be", "try to", "attempt to", "wish to",
	"hope to", "plan to", "intend to", "aim to", "want to", "would like to",
	"wondering if", "not sure if",
}

// Filler words match per token, so the multiword entries only ever hit when
// tokenization keeps them together (they don't; kept for parity with the
// phrase vocabulary).
var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "like": {}, "you know": {}, "so": {}, "basically": {},
	"actually": {}, "well": {}, "er": {}, "ahm": {}, "i mean": {}, "sort of": {},
	"kind of": {}, "yep": {}, "right": {},
}

const (
	feedbackQuestioningTone = "Questioning tone detected - try making more definitive statements"
	feedbackWordRepetition  = "Word repetition detected - try to speak more fluidly"
)

// Result is the outcome of analyzing one speech segment. Marker counts are
// added to the session totals by the caller.
type Result struct {
	ConfidentHits     int
	UnconfidentHits   int
	SegmentConfidence float64
	Feedback          []string
	Fillers           []string
}

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(segment string) Result {
	lower := strings.ToLower(segment)

	matchedUnconfident := matches(lower, unconfidentPhrases)
	matchedConfident := matches(lower, confidentPhrases)

	res := Result{
		ConfidentHits:   len(matchedConfident),
		UnconfidentHits: len(matchedUnconfident),
	}
	if total := res.ConfidentHits + res.UnconfidentHits; total > 0 {
		res.SegmentConfidence = float64(res.ConfidentHits) / float64(total) * 100
	}

	if len(matchedUnconfident) > 0 {
		res.Feedback = append(res.Feedback, "Detected uncertainty phrases: "+strings.Join(matchedUnconfident, ", "))
	}
	if len(matchedConfident) > 0 {
		res.Feedback = append(res.Feedback, "Positive confident phrases used: "+strings.Join(matchedConfident, ", "))
	}

	tokens := Tokenize(lower)
	if len(tokens) > 0 {
		if strings.Contains(segment, "?") {
			res.Feedback = append(res.Feedback, feedbackQuestioningTone)
		}
		for i := 0; i < len(tokens)-1; i++ {
			if tokens[i] == tokens[i+1] {
				res.Feedback = append(res.Feedback, feedbackWordRepetition)
				break
			}
		}
	}

	res.Fillers = detectFillers(tokens)
	if len(res.Fillers) > 0 {
		res.Feedback = append(res.Feedback, "Filler words detected: "+strings.Join(distinct(res.Fillers), ", "))
	}

	return res
}

// matches returns the phrase list entries contained in the lowered text, in
// list order, one entry per occurrence in the list.
func matches(lower string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			out = append(out, p)
		}
	}
	return out
}

// Tokenize splits on whitespace and strips surrounding punctuation from each
// token. Input is expected to be lowercased by the caller when matching.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func detectFillers(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if _, ok := fillerWords[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func distinct(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
