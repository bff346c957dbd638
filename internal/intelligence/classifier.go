package intelligence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// Classifier picks the extractor set for a document with weighted keyword
// and structure rules.
type Classifier struct {
	config Config
	rules  []Rule
	log    *slog.Logger

	cacheMu sync.RWMutex
	cache   map[string]Classification

	patterns sync.Map // pattern -> *regexp.Regexp
}

// NewClassifier creates a classifier with the built-in rules; a nil logger
// discards output.
func NewClassifier(config Config, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		config: config,
		rules:  defaultRules(),
		log:    log,
		cache:  make(map[string]Classification),
	}
}

// Classify scores every enabled rule against the document text and
// structure. The best tag below the confidence threshold falls back to
// unknown.
func (c *Classifier) Classify(ctx context.Context, doc *structure.Document) (Classification, error) {
	start := time.Now()
	content := documentText(doc, c.config.MaxContentLength)

	key := cacheKey(content)
	if c.config.CacheClassifications {
		c.cacheMu.RLock()
		cached, ok := c.cache[key]
		c.cacheMu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	features := extractFeatures(doc, content)
	scores := make(map[extract.Classification]float64)
	reasons := make(map[extract.Classification][]Reason)
	var applied []string

	for _, rule := range c.rules {
		if !rule.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Classification{}, err
		}
		confidence, why := c.evaluateRule(rule, content, features)
		if confidence >= rule.MinConfidence {
			scores[rule.Tag] += confidence * rule.Weight
			reasons[rule.Tag] = append(reasons[rule.Tag], why...)
			applied = append(applied, rule.Name)
		}
	}

	tag, confidence := c.primary(scores)
	result := Classification{
		Tag:          tag,
		Confidence:   confidence,
		Alternatives: c.alternatives(scores, tag),
		Reasons:      reasons[tag],
		RulesApplied: applied,
		Features:     features,
		ElapsedTime:  time.Since(start),
	}
	if len(result.Reasons) == 0 {
		result.Reasons = []Reason{{Rule: "default", Category: "fallback", Evidence: "no strong classification signals found", Confidence: confidence, Weight: 1}}
	}

	c.log.Debug("document classified", "tag", string(tag), "confidence", confidence, "rules", len(applied))

	if c.config.CacheClassifications {
		c.cacheMu.Lock()
		if len(c.cache) >= 100 {
			for k := range c.cache {
				delete(c.cache, k)
				break
			}
		}
		c.cache[key] = result
		c.cacheMu.Unlock()
	}
	return result, nil
}

// evaluateRule averages the keyword and structure components of a rule.
func (c *Classifier) evaluateRule(rule Rule, content string, f Features) (float64, []Reason) {
	var total float64
	var reasons []Reason
	components := 0

	if len(rule.Keywords) > 0 || len(rule.KeywordPatterns) > 0 {
		conf, why := c.evaluateKeywords(rule, content)
		total += conf
		reasons = append(reasons, why...)
		components++
	}
	if len(rule.StructureRules) > 0 {
		conf, why := evaluateStructure(rule, f)
		total += conf
		reasons = append(reasons, why...)
		components++
	}
	if components == 0 {
		return 0, nil
	}
	return total / float64(components), reasons
}

func (c *Classifier) evaluateKeywords(rule Rule, content string) (float64, []Reason) {
	var confidence float64
	var reasons []Reason
	lower := strings.ToLower(content)

	for _, kw := range rule.Keywords {
		if n := strings.Count(lower, strings.ToLower(kw)); n > 0 {
			conf := 0.1 * float64(n)
			confidence += conf
			reasons = append(reasons, Reason{
				Rule:       rule.Name,
				Category:   "keyword",
				Evidence:   fmt.Sprintf("found keyword '%s' %d times", kw, n),
				Confidence: conf,
				Weight:     rule.Weight,
			})
		}
	}
	for _, p := range rule.KeywordPatterns {
		re := c.pattern(p)
		if re == nil {
			continue
		}
		if n := len(re.FindAllStringIndex(content, -1)); n > 0 {
			conf := 0.15 * float64(n)
			confidence += conf
			reasons = append(reasons, Reason{
				Rule:       rule.Name,
				Category:   "pattern",
				Evidence:   fmt.Sprintf("pattern '%s' matched %d times", p, n),
				Confidence: conf,
				Weight:     rule.Weight,
			})
		}
	}
	return confidence, reasons
}

// pattern compiles case-insensitively once; invalid patterns are skipped.
func (c *Classifier) pattern(p string) *regexp.Regexp {
	if re, ok := c.patterns.Load(p); ok {
		return re.(*regexp.Regexp)
	}
	re, err := regexp.Compile("(?i)" + p)
	if err != nil {
		c.log.Warn("invalid classification pattern", "pattern", p, "error", err)
		return nil
	}
	c.patterns.Store(p, re)
	return re
}

func evaluateStructure(rule Rule, f Features) (float64, []Reason) {
	var confidence float64
	var reasons []Reason
	for _, sr := range rule.StructureRules {
		n := f.Count(sr.Element)
		meetsMin := sr.MinCount == 0 || n >= sr.MinCount
		meetsMax := sr.MaxCount == 0 || n <= sr.MaxCount
		if meetsMin && meetsMax {
			confidence += sr.Confidence
			reasons = append(reasons, Reason{
				Rule:       rule.Name,
				Category:   "structure",
				Evidence:   fmt.Sprintf("found %d %s", n, sr.Element),
				Confidence: sr.Confidence,
				Weight:     rule.Weight,
			})
		}
	}
	return confidence, reasons
}

func (c *Classifier) primary(scores map[extract.Classification]float64) (extract.Classification, float64) {
	best, bestScore := extract.ClassUnknown, 0.0
	for _, tag := range extract.Classifications() {
		if s := scores[tag]; s > bestScore {
			best, bestScore = tag, s
		}
	}
	if bestScore > 1 {
		bestScore = 1
	}
	if bestScore < c.config.MinConfidenceThreshold {
		return extract.ClassUnknown, bestScore
	}
	return best, bestScore
}

func (c *Classifier) alternatives(scores map[extract.Classification]float64, primary extract.Classification) []Alternative {
	var alts []Alternative
	for tag, s := range scores {
		if tag != primary && s >= c.config.MinConfidenceThreshold*0.5 {
			alts = append(alts, Alternative{Tag: tag, Confidence: min(s, 1)})
		}
	}
	sort.Slice(alts, func(i, j int) bool {
		if alts[i].Confidence != alts[j].Confidence {
			return alts[i].Confidence > alts[j].Confidence
		}
		return alts[i].Tag < alts[j].Tag
	})
	if len(alts) > c.config.MaxAlternatives {
		alts = alts[:c.config.MaxAlternatives]
	}
	return alts
}

// LoadRules appends rules from a JSON file holding a list of rules.
func (c *Classifier) LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("failed to parse rules: %w", err)
	}
	for _, r := range rules {
		if _, err := extract.ParseClassification(string(r.Tag)); err != nil || r.Tag == extract.ClassAuto {
			return fmt.Errorf("rule %q: unknown tag %q", r.Name, r.Tag)
		}
	}
	c.rules = append(c.rules, rules...)
	return nil
}

// Rules returns the active rule names
func (c *Classifier) Rules() []string {
	names := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		names = append(names, r.Name)
	}
	return names
}

func extractFeatures(doc *structure.Document, content string) Features {
	f := Features{
		Pages:       doc.Layout.PageCount(),
		Sections:    len(doc.All()),
		Definitions: len(doc.Definitions),
		Words:       len(strings.Fields(content)),
	}
	for _, s := range doc.All() {
		if s.Level == 1 {
			f.Articles++
		}
		if strings.Contains(strings.ToLower(s.TitleText()), "ratio") {
			f.RatioSections++
		}
	}
	return f
}

// documentText joins page text up to limit bytes.
func documentText(doc *structure.Document, limit int) string {
	var sb strings.Builder
	for _, p := range doc.Layout.Pages() {
		for _, b := range p.TextBoxes() {
			if limit > 0 && sb.Len() >= limit {
				return sb.String()
			}
			sb.WriteString(b.Text())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func cacheKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
