// File: internal/instruction/parser.go

// Package instruction turns natural-language commands into executable
// browser actions: parse, resolve the target element, map to a concrete
// action and run it with retries.
package instruction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xkilldash9x/voyant/api/schemas"
)

var (
	urlRe      = regexp.MustCompile(`(?:https?|file)://[^\s"']+`)
	domainRe   = regexp.MustCompile(`\b[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.(?:com|org|net|io|dev|gov|edu|co)\b`)
	quotedRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	selectorRe = regexp.MustCompile(`(?:^|\s)([#.][A-Za-z][\w-]*)`)
	numberRe   = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// actionVerbs are the verbs that mark the start of a new substep when they
// follow a conjunction or comma.
var actionVerbs = map[string]bool{
	"go": true, "navigate": true, "open": true, "visit": true,
	"click": true, "press": true, "tap": true,
	"type": true, "enter": true, "fill": true, "write": true, "input": true,
	"search": true, "look": true, "find": true,
	"select": true, "choose": true, "pick": true,
	"extract": true, "get": true, "scrape": true, "collect": true,
	"wait": true, "screenshot": true, "capture": true,
	"scroll": true, "refresh": true, "reload": true,
}

var knownSites = map[string]bool{
	"google": true, "amazon": true, "github": true, "youtube": true,
	"wikipedia": true, "twitter": true, "facebook": true, "reddit": true,
	"stackoverflow": true, "linkedin": true,
}

var timeWords = map[string]bool{
	"now": true, "today": true, "tomorrow": true, "tonight": true,
}

var locationWords = map[string]bool{
	"header": true, "footer": true, "sidebar": true, "top": true, "bottom": true,
}

// SplitConjoined breaks a compound instruction into ordered substeps. A
// split happens at ", then ", or at " and " / "," when the next word is an
// action verb; plain conjunctions inside a phrase ("cats and dogs") stay
// intact.
func SplitConjoined(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var parts []string
	remaining := text
	for {
		idx, skip := nextSplitPoint(remaining)
		if idx < 0 {
			parts = append(parts, strings.TrimSpace(remaining))
			break
		}
		head := strings.TrimSpace(remaining[:idx])
		if head != "" {
			parts = append(parts, head)
		}
		remaining = strings.TrimSpace(remaining[idx+skip:])
		if remaining == "" {
			break
		}
	}

	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimPrefix(p, "then ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// nextSplitPoint returns the byte offset and separator length of the next
// substep boundary, or -1. Conjunction and comma boundaries only count when
// followed by an action verb.
func nextSplitPoint(s string) (int, int) {
	lower := strings.ToLower(s)
	best, bestSkip := -1, 0

	find := func(sep string, verbGate bool) {
		from := 0
		for {
			idx := strings.Index(lower[from:], sep)
			if idx < 0 {
				return
			}
			idx += from
			ok := true
			if verbGate {
				word := firstWord(lower[idx+len(sep):])
				ok = word == "then" || actionVerbs[word]
			}
			if ok {
				if best < 0 || idx < best {
					best, bestSkip = idx, len(sep)
				}
				return
			}
			from = idx + 1
		}
	}

	find(", then ", false)
	find(" and ", true)
	find(", ", true)
	return best, bestSkip
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

// ExtractEntities tokenizes text into typed entities.
func ExtractEntities(text string) []schemas.Entity {
	var entities []schemas.Entity
	seen := map[string]bool{}

	add := func(t schemas.EntityType, value string, conf float64) {
		key := string(t) + ":" + value
		if value == "" || seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, schemas.Entity{Type: t, Value: value, Confidence: conf})
	}

	for _, m := range urlRe.FindAllString(text, -1) {
		add(schemas.EntityURL, strings.TrimRight(m, ".,;"), 0.95)
	}
	lower := strings.ToLower(text)
	for _, m := range domainRe.FindAllString(lower, -1) {
		if !seen[string(schemas.EntityURL)+":https://"+m] {
			add(schemas.EntitySite, m, 0.8)
		}
	}
	for _, groups := range quotedRe.FindAllStringSubmatch(text, -1) {
		v := groups[1]
		if v == "" {
			v = groups[2]
		}
		add(schemas.EntityQuoted, v, 0.9)
	}
	for _, groups := range selectorRe.FindAllStringSubmatch(text, -1) {
		add(schemas.EntitySelector, groups[1], 0.85)
	}
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,!?")
		switch {
		case knownSites[w]:
			add(schemas.EntitySite, w, 0.7)
		case timeWords[w]:
			add(schemas.EntityTime, w, 0.6)
		case locationWords[w]:
			add(schemas.EntityLocation, w, 0.6)
		}
	}
	for _, m := range numberRe.FindAllString(text, -1) {
		add(schemas.EntityNumber, m, 0.7)
	}
	return entities
}

// Parser classifies instructions against verb and phrase patterns.
type Parser struct {
	confidenceThreshold float64
}

func NewParser(confidenceThreshold float64) *Parser {
	return &Parser{confidenceThreshold: confidenceThreshold}
}

// Parse analyzes one (non-conjoined) instruction. Parsing is deterministic;
// the same raw text always yields the same Intent.
func (p *Parser) Parse(text string) schemas.Instruction {
	raw := strings.TrimSpace(text)
	entities := ExtractEntities(raw)
	intent, confidence := p.classify(raw, entities)

	instr := schemas.Instruction{
		Raw:        raw,
		Intent:     intent,
		Entities:   entities,
		Confidence: confidence,
	}
	if confidence < p.confidenceThreshold {
		instr.NeedsClarification = true
		instr.ClarificationQuestions = clarificationQuestions(intent)
	}
	return instr
}

func (p *Parser) classify(raw string, entities []schemas.Entity) (schemas.Intent, float64) {
	lower := strings.ToLower(raw)
	verb := firstWord(lower)
	rest := strings.TrimSpace(strings.TrimPrefix(lower, verb))

	entityOf := func(t schemas.EntityType) string {
		for _, e := range entities {
			if e.Type == t {
				return e.Value
			}
		}
		return ""
	}

	switch {
	case lower == "go back" || verb == "back":
		return schemas.Intent{Kind: schemas.IntentNavigate, NavTarget: schemas.NavBack}, 0.95
	case lower == "go forward" || verb == "forward":
		return schemas.Intent{Kind: schemas.IntentNavigate, NavTarget: schemas.NavForward}, 0.95
	case verb == "refresh" || verb == "reload":
		return schemas.Intent{Kind: schemas.IntentNavigate, NavTarget: schemas.NavRefresh}, 0.95

	case verb == "go" || verb == "navigate" || verb == "open" || verb == "visit":
		url := entityOf(schemas.EntityURL)
		if url == "" {
			if site := entityOf(schemas.EntitySite); site != "" {
				if strings.Contains(site, ".") {
					url = "https://" + site
				} else {
					url = "https://" + site + ".com"
				}
			}
		}
		conf := 0.9
		if url == "" {
			conf = 0.3
		}
		return schemas.Intent{Kind: schemas.IntentNavigate, NavTarget: schemas.NavURL, URL: url}, conf

	case verb == "search" || strings.HasPrefix(lower, "look for"):
		query := entityOf(schemas.EntityQuoted)
		if query == "" {
			query = strings.TrimSpace(strings.TrimPrefix(rest, "for"))
			query = strings.TrimSpace(strings.TrimPrefix(query, "look for"))
		}
		conf := 0.85
		if query == "" {
			conf = 0.3
		}
		return schemas.Intent{Kind: schemas.IntentSearch, Query: query}, conf

	case verb == "click" || verb == "press" || verb == "tap":
		target := entityOf(schemas.EntitySelector)
		if target == "" {
			target = strings.TrimSpace(stripArticles(trimPrepositions(rest)))
		}
		conf := 0.9
		if target == "" {
			conf = 0.3
		}
		return schemas.Intent{Kind: schemas.IntentClick, TargetDescription: target}, conf

	case verb == "type" || verb == "enter" || verb == "fill" || verb == "write" || verb == "input":
		value := entityOf(schemas.EntityQuoted)
		target := ""
		if idx := strings.LastIndex(lower, " into "); idx >= 0 {
			target = stripArticles(strings.TrimSpace(raw[idx+len(" into "):]))
			if value == "" {
				value = strings.TrimSpace(stripArticles(strings.TrimSpace(lower[len(verb):idx])))
			}
		} else if value == "" {
			value = strings.TrimSpace(rest)
		}
		clear := strings.Contains(lower, "replace") || strings.Contains(lower, "clear")
		conf := 0.85
		if value == "" {
			conf = 0.3
		}
		return schemas.Intent{
			Kind:              schemas.IntentType,
			Text:              value,
			TargetDescription: target,
			ClearFirst:        clear,
		}, conf

	case verb == "select" || verb == "choose" || verb == "pick":
		option := entityOf(schemas.EntityQuoted)
		target := ""
		if idx := strings.LastIndex(lower, " from "); idx >= 0 {
			target = stripArticles(strings.TrimSpace(raw[idx+len(" from "):]))
			if option == "" {
				option = strings.TrimSpace(stripArticles(strings.TrimSpace(lower[len(verb):idx])))
			}
		} else if option == "" {
			option = strings.TrimSpace(stripArticles(rest))
		}
		conf := 0.85
		if option == "" {
			conf = 0.3
		}
		return schemas.Intent{Kind: schemas.IntentSelect, Option: option, TargetDescription: target}, conf

	case verb == "extract" || verb == "scrape" || verb == "collect" ||
		(verb == "get" && strings.Contains(lower, "all ")):
		dataType := strings.TrimSpace(stripArticles(strings.TrimPrefix(rest, "all")))
		conf := 0.8
		if dataType == "" {
			conf = 0.3
		}
		return schemas.Intent{Kind: schemas.IntentExtract, DataType: dataType}, conf

	case verb == "wait":
		timeoutMs := int64(0)
		if n := entityOf(schemas.EntityNumber); n != "" && strings.Contains(lower, "second") {
			if secs, err := strconv.ParseFloat(n, 64); err == nil {
				timeoutMs = int64(secs * 1000)
			}
		}
		condition := strings.TrimSpace(strings.TrimPrefix(rest, "for"))
		return schemas.Intent{Kind: schemas.IntentWait, Condition: condition, TimeoutMs: timeoutMs}, 0.85

	case verb == "screenshot" || strings.Contains(lower, "screenshot") || verb == "capture":
		area := "viewport"
		if strings.Contains(lower, "full") || strings.Contains(lower, "whole") ||
			strings.Contains(lower, "entire") {
			area = "full_page"
		}
		return schemas.Intent{Kind: schemas.IntentScreenshot, Area: area}, 0.9

	case verb == "scroll":
		direction := "down"
		for _, d := range []string{"up", "down", "top", "bottom", "left", "right"} {
			if strings.Contains(lower, d) {
				direction = d
				break
			}
		}
		amount := 0
		if n := entityOf(schemas.EntityNumber); n != "" {
			if v, err := strconv.Atoi(n); err == nil {
				amount = v
			}
		}
		return schemas.Intent{Kind: schemas.IntentScroll, Direction: direction, Amount: amount}, 0.9
	}

	return schemas.Intent{Kind: schemas.IntentUnknown}, 0.2
}

// trimPrepositions drops a leading "on/at/in the ..." chain.
func trimPrepositions(s string) string {
	for _, prep := range []string{"on ", "at ", "in "} {
		if strings.HasPrefix(s, prep) {
			return strings.TrimPrefix(s, prep)
		}
	}
	return s
}

func stripArticles(s string) string {
	for _, art := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, art) {
			return strings.TrimPrefix(s, art)
		}
	}
	return s
}

func clarificationQuestions(intent schemas.Intent) []string {
	switch intent.Kind {
	case schemas.IntentNavigate:
		return []string{"Which URL should I navigate to?"}
	case schemas.IntentClick:
		return []string{"What should I click on? A button label or CSS selector helps."}
	case schemas.IntentType:
		return []string{"What text should I type, and into which field?"}
	case schemas.IntentSelect:
		return []string{"Which option should I select?"}
	case schemas.IntentSearch:
		return []string{"What should I search for?"}
	case schemas.IntentExtract:
		return []string{"What data should I extract (links, text, table rows)?"}
	default:
		return []string{"I could not understand the instruction. Try starting with a verb like go, click, type or search."}
	}
}
