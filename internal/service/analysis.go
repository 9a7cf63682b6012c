package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Primary intents returned by query analysis
const (
	IntentFactual    = "FACTUAL"
	IntentAnalytical = "ANALYTICAL"
	IntentExpert     = "EXPERT"
	IntentHybrid     = "HYBRID"
)

// Upload intents
const (
	UploadIntentSummary  = "SUMMARY"
	UploadIntentAnalysis = "ANALYSIS"
	UploadIntentSpecific = "SPECIFIC"
	UploadIntentCompare  = "COMPARE"
)

var (
	jsonFence    = regexp.MustCompile("```(?:json)?\\s*|\\s*```")
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F]`)
	linkPattern  = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	questionTag  = regexp.MustCompile(`(?s)<question>(.*?)</question>`)
	linksTag     = regexp.MustCompile(`(?s)<links>(.*?)</links>`)
)

// ParsedMessage is a user message with the sector picker envelope removed
type ParsedMessage struct {
	Query        string
	Sector       domain.SectorSelection
	DocumentPath string
	Structured   bool
}

// cleanJSON strips markdown fences and control characters from a model or
// client supplied JSON string
func cleanJSON(s string) string {
	s = jsonFence.ReplaceAllString(s, "")
	s = controlChars.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// extractObject returns the outermost JSON object embedded in s
func extractObject(s string) string {
	s = cleanJSON(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// ParseMessage recognises the sector research envelope sent by the sector
// picker. Any other message is returned as is.
func ParseMessage(raw string) ParsedMessage {
	parsed := ParsedMessage{Query: strings.TrimSpace(raw)}

	cleaned := cleanJSON(raw)
	if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") || !gjson.Valid(cleaned) {
		return parsed
	}

	var msg domain.SectorResearchMessage
	if err := json.Unmarshal([]byte(cleaned), &msg); err != nil {
		return parsed
	}
	if msg.Type != domain.SectorResearchType || strings.TrimSpace(msg.Sector) == "" {
		return parsed
	}

	parsed.Structured = true
	parsed.Sector.Sector = strings.TrimSpace(msg.Sector)
	if msg.Subsector != nil {
		parsed.Sector.Subsector = strings.TrimSpace(*msg.Subsector)
	}
	parsed.DocumentPath = msg.DocumentPath
	if q := strings.TrimSpace(msg.Query); q != "" {
		parsed.Query = q
	}
	return parsed
}

// QueryAnalysis decides which sources are searched
type QueryAnalysis struct {
	PrimaryIntent          string
	RequiresDocumentSearch bool
	RequiresWebSearch      bool
	RequiresExpertSearch   bool
	Keywords               []string
	City                   string
}

func defaultAnalysis(hasFiles bool) QueryAnalysis {
	return QueryAnalysis{
		PrimaryIntent:          IntentHybrid,
		RequiresDocumentSearch: hasFiles,
		RequiresWebSearch:      true,
		RequiresExpertSearch:   true,
	}
}

const analysisPrompt = `Tu analyses des requêtes pour choisir une stratégie de recherche.
Réponds UNIQUEMENT avec un objet JSON valide de la forme :
{"primaryIntent":"FACTUAL|ANALYTICAL|EXPERT|HYBRID","requiresDocumentSearch":bool,"requiresWebSearch":bool,"requiresExpertSearch":bool,"keywords":["..."],"city":""}`

// analyze asks the model which sources the query needs. Any failure yields
// the hybrid default.
func (o *Orchestrator) analyze(ctx context.Context, query string, sel domain.SectorSelection, hasFiles bool) QueryAnalysis {
	def := defaultAnalysis(hasFiles)

	var sb strings.Builder
	sb.WriteString("Requête : \"" + query + "\"\n")
	sb.WriteString("Documents fournis : " + yesNo(hasFiles) + "\n")
	sb.WriteString("Secteur : " + orDefault(sel.Sector, "Non spécifié") + "\n")
	sb.WriteString("Sous-secteur : " + orDefault(sel.Subsector, "Non spécifié"))

	out, err := o.llm.Complete(ctx, []llm.Message{llm.System(analysisPrompt), llm.User(sb.String())}, llm.WithTemperature(0))
	if err != nil {
		o.logger.Warn("Query analysis failed, using defaults", zap.Error(err))
		return def
	}

	obj := extractObject(out)
	if obj == "" || !gjson.Valid(obj) {
		o.logger.Warn("Query analysis is not JSON, using defaults", zap.String("output", truncateRunes(out, 200)))
		return def
	}

	r := gjson.Parse(obj)
	analysis := QueryAnalysis{
		PrimaryIntent:          strings.ToUpper(r.Get("primaryIntent").String()),
		RequiresDocumentSearch: hasFiles && boolOr(r.Get("requiresDocumentSearch"), true),
		RequiresWebSearch:      boolOr(r.Get("requiresWebSearch"), def.RequiresWebSearch),
		RequiresExpertSearch:   boolOr(r.Get("requiresExpertSearch"), def.RequiresExpertSearch),
		City:                   strings.TrimSpace(r.Get("city").String()),
	}
	switch analysis.PrimaryIntent {
	case IntentFactual, IntentAnalytical, IntentExpert, IntentHybrid:
	default:
		analysis.PrimaryIntent = IntentHybrid
	}
	r.Get("keywords").ForEach(func(_, k gjson.Result) bool {
		if kw := strings.TrimSpace(k.String()); kw != "" {
			analysis.Keywords = append(analysis.Keywords, kw)
		}
		return true
	})
	return analysis
}

const rephrasePrompt = `Reformule la dernière question de l'utilisateur en une question autonome adaptée à une recherche web, en tenant compte de la conversation.
Si aucune recherche n'est nécessaire (salutation, remerciement), réponds <question>not_needed</question>.
Si l'utilisateur demande d'analyser des pages, liste leurs adresses dans <links></links>.
Format : <question>...</question> puis éventuellement <links>...</links>.`

// rephrase turns the query into a standalone search question. It returns
// the question, whether a web search is needed and the links to fetch.
func (o *Orchestrator) rephrase(ctx context.Context, query string, history []domain.HistoryItem) (string, bool, []string) {
	links := linkPattern.FindAllString(query, -1)

	var sb strings.Builder
	for _, h := range lastHistory(history, 6) {
		sb.WriteString(h.Role + " : " + h.Content + "\n")
	}
	sb.WriteString("Question : " + query)

	out, err := o.llm.Complete(ctx, []llm.Message{llm.System(rephrasePrompt), llm.User(sb.String())}, llm.WithTemperature(0))
	if err != nil {
		o.logger.Warn("Rephrase failed, using the raw query", zap.Error(err))
		return query, true, links
	}

	// untagged output is not trusted as a search query
	question := query
	if m := questionTag.FindStringSubmatch(out); m != nil {
		question = strings.TrimSpace(m[1])
	}
	if m := linksTag.FindStringSubmatch(out); m != nil {
		links = append(links, linkPattern.FindAllString(m[1], -1)...)
	}
	links = dedupe(links)

	if question == "not_needed" {
		return query, false, links
	}
	if question == "" {
		question = query
	}
	return question, true, links
}

const uploadIntentPrompt = `Classe la demande de l'utilisateur sur ses documents. Réponds par un seul mot parmi : SUMMARY, ANALYSIS, SPECIFIC, COMPARE.`

// detectUploadIntent classifies a question about uploaded documents
func (o *Orchestrator) detectUploadIntent(ctx context.Context, query string) string {
	out, err := o.llm.Complete(ctx, []llm.Message{llm.System(uploadIntentPrompt), llm.User(query)}, llm.WithTemperature(0))
	if err == nil {
		word := strings.ToUpper(strings.TrimFunc(out, func(r rune) bool { return !unicode.IsLetter(r) }))
		switch word {
		case UploadIntentSummary, UploadIntentAnalysis, UploadIntentSpecific, UploadIntentCompare:
			return word
		}
	}
	return guessUploadIntent(query)
}

func guessUploadIntent(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "résum") || strings.Contains(q, "resum") || strings.Contains(q, "synthèse"):
		return UploadIntentSummary
	case strings.Contains(q, "compar") || strings.Contains(q, "différence"):
		return UploadIntentCompare
	case strings.Contains(q, "analys") || strings.Contains(q, "évalu"):
		return UploadIntentAnalysis
	default:
		return UploadIntentSpecific
	}
}

// rewriteForIntent turns the question into an instruction matching the intent
func rewriteForIntent(intent, query string) string {
	switch intent {
	case UploadIntentSummary:
		return "Fais une synthèse structurée des points clés du document. " + query
	case UploadIntentAnalysis:
		return "Analyse en détail le contenu du document : forces, faiblesses, risques et chiffres clés. " + query
	case UploadIntentCompare:
		return "Compare les documents ou les éléments demandés en soulignant les différences. " + query
	default:
		return query
	}
}

var stopWords = map[string]bool{
	"alors": true, "au": true, "aux": true, "avec": true, "besoin": true, "bonjour": true, "cette": true,
	"comment": true, "dans": true, "des": true, "est": true, "être": true, "faire": true, "faut": true,
	"je": true, "les": true, "leur": true, "mais": true, "mon": true, "nous": true, "par": true,
	"peux": true, "pouvez": true, "pour": true, "quel": true, "quelle": true, "quels": true, "quelles": true,
	"qui": true, "quoi": true, "sont": true, "sur": true, "trouver": true, "une": true, "vous": true,
	"votre": true, "cherche": true, "expert": true, "experts": true, "aide": true, "aider": true,
}

// keywords splits the query into search terms without stop words
func keywords(query string, max int) []string {
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		if len([]rune(w)) < 4 || stopWords[w] {
			continue
		}
		terms = append(terms, w)
	}
	terms = dedupe(terms)
	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}

func boolOr(r gjson.Result, def bool) bool {
	if !r.Exists() {
		return def
	}
	return r.Bool()
}

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func lastHistory(history []domain.HistoryItem, n int) []domain.HistoryItem {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
