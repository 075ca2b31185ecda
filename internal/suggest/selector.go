// Package suggest proposes implementation metadata for compliance controls.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/learn"
	"github.com/sells-group/control-assist/internal/model"
)

// Strategy confidences.
const (
	ConfidenceTemplate          = 0.8
	ConfidenceKeyword           = 0.7
	ConfidenceKeywordNoTemplate = 0.75
	ConfidenceSimilarity        = 0.6
	ConfidenceGeneric           = 0.4
	ConfidenceGenerated         = 0.7
)

// minKeywordHits is the number of distinct keywords a category needs.
const minKeywordHits = 2

// Strategy names which deterministic strategy filled the fields.
type Strategy string

// Strategies in evaluation order.
const (
	StrategyTemplate   Strategy = "template"
	StrategyKeyword    Strategy = "keyword"
	StrategySimilarity Strategy = "similarity"
	StrategyGeneric    Strategy = "generic"
)

// Generator produces implementation text. It is satisfied by
// *generate.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, control model.Control, cfg model.ProviderConfig, existing []model.ExistingControl, fallbackText string) (*model.GenerationResult, error)
}

// Selector runs the suggestion strategies and the text generator.
type Selector struct {
	gen     Generator
	catalog *Catalog
}

// NewSelector creates a Selector over the given catalog.
func NewSelector(gen Generator, catalog *Catalog) *Selector {
	return &Selector{gen: gen, catalog: catalog}
}

// outcome is the result of the deterministic strategies.
type outcome struct {
	strategy   Strategy
	fields     model.FieldSet
	confidence float64
	reasoning  []string
}

// Select builds a Suggestion for control. It returns an error only when the
// generator fails and pattern fallback is disabled in cfg; any other
// failure degrades to a generic suggestion with zero confidence.
func (s *Selector) Select(ctx context.Context, control model.Control, existing []model.ExistingControl, cfg model.ProviderConfig) (sug *model.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("suggest: recovered panic",
				zap.String("control_id", control.ID),
				zap.Any("panic", r),
			)
			sug, err = s.minimal(control, fmt.Errorf("panic: %v", r)), nil
		}
	}()

	out := s.strategies(control, existing)

	fallback := out.fields.Implementation
	if strings.TrimSpace(fallback) == "" {
		fallback = genericSentence(control)
	}

	res, genErr := s.gen.Generate(ctx, control, cfg, existing, fallback)
	if genErr != nil {
		if !cfg.FallbackToPatternMatching {
			return nil, eris.Wrapf(genErr, "suggest: generate %s", control.ID)
		}
		zap.L().Warn("suggest: generator failed with fallback enabled",
			zap.String("control_id", control.ID),
			zap.Error(genErr),
		)
		return s.minimal(control, genErr), nil
	}
	if res == nil {
		res = &model.GenerationResult{Text: fallback}
	}

	sug = model.NewSuggestion(control.ID, out.fields)
	sug.Confidence = out.confidence
	sug.Reasoning = append(sug.Reasoning, out.reasoning...)

	switch {
	case res.Generated:
		sug.Implementation = res.Text
		sug.Source = model.SourceAI
		if sug.Confidence < ConfidenceGenerated {
			sug.Confidence = ConfidenceGenerated
		}
		sug.Reasoning = append(sug.Reasoning, fmt.Sprintf("Implementation text generated by the %s provider", res.Provider))
	default:
		sug.Implementation = firstNonEmpty(res.Text, fallback)
		sug.Source = sourceFor(out.strategy)
		if res.Attempted {
			sug.Reasoning = append(sug.Reasoning, fmt.Sprintf("Text generation via the %s provider failed; kept pattern-based implementation text", res.Provider))
		}
	}

	zap.L().Debug("suggest: selected",
		zap.String("control_id", control.ID),
		zap.String("strategy", string(out.strategy)),
		zap.String("source", string(sug.Source)),
		zap.Float64("confidence", sug.Confidence),
	)
	return sug, nil
}

func (s *Selector) strategies(control model.Control, existing []model.ExistingControl) outcome {
	search := control.SearchText()
	family := control.FamilyCode()

	set, hasFamily := s.catalog.Family(family)
	if hasFamily {
		for _, t := range set.Templates {
			if strings.Contains(search, t.Key) {
				return outcome{
					strategy:   StrategyTemplate,
					fields:     t.Fields,
					confidence: ConfidenceTemplate,
					reasoning:  []string{fmt.Sprintf("Matched %s family template %q", family, t.Key)},
				}
			}
		}
	}

	for _, k := range s.catalog.Keywords {
		hits := keywordHits(search, k.Keywords)
		if hits < minKeywordHits {
			continue
		}
		conf := ConfidenceKeyword
		if !hasFamily {
			conf = ConfidenceKeywordNoTemplate
		}
		return outcome{
			strategy:   StrategyKeyword,
			fields:     k.Fields,
			confidence: conf,
			reasoning:  []string{fmt.Sprintf("Matched %d %s keywords", hits, k.Category)},
		}
	}

	if similar := learn.FindSimilar(control, existing); len(similar) > 0 {
		fs := learn.Aggregate(similar)
		reasons := []string{fmt.Sprintf("Learned field values from %d similar existing controls", len(similar))}
		if !learn.HasFieldValues(similar) {
			reasons = []string{fmt.Sprintf("Found %d similar existing controls without field values; applied defaults", len(similar))}
		}
		if fs.Implementation != "" {
			reasons = append(reasons, "Reused implementation text from a similar existing control")
		}
		return outcome{
			strategy:   StrategySimilarity,
			fields:     fs,
			confidence: ConfidenceSimilarity,
			reasoning:  reasons,
		}
	}

	title := strings.ToLower(control.Title)
	for _, g := range s.catalog.Generic {
		for _, kw := range g.TitleKeywords {
			if strings.Contains(title, kw) {
				return outcome{
					strategy:   StrategyGeneric,
					fields:     g.Fields,
					confidence: ConfidenceGeneric,
					reasoning:  []string{fmt.Sprintf("Applied generic %s defaults", g.Name)},
				}
			}
		}
	}
	return outcome{
		strategy:   StrategyGeneric,
		fields:     s.catalog.Default,
		confidence: ConfidenceGeneric,
		reasoning:  []string{"Applied generic defaults"},
	}
}

// minimal is the last-resort suggestion returned after an unexpected failure.
func (s *Selector) minimal(control model.Control, cause error) *model.Suggestion {
	fs := model.FieldSet{
		Status:           learn.DefaultStatus,
		ResponsibleParty: learn.DefaultResponsibleParty,
		ControlType:      learn.DefaultControlType,
		TestingMethod:    learn.DefaultTestingMethod,
		TestingFrequency: learn.DefaultTestingFrequency,
		RiskRating:       learn.DefaultRiskRating,
	}
	if s.catalog != nil {
		fs = s.catalog.Default
	}
	fs.Implementation = genericSentence(control)

	sug := model.NewSuggestion(control.ID, fs)
	sug.Source = model.SourceFallback
	sug.Reasoning = []string{fmt.Sprintf("Suggestion failed, returned generic defaults: %v", cause)}
	return sug
}

func keywordHits(search string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(search, kw) {
			n++
		}
	}
	return n
}

func sourceFor(st Strategy) model.Source {
	if st == StrategyTemplate || st == StrategyKeyword {
		return model.SourceTemplate
	}
	return model.SourceFallback
}

// genericSentence is the fallback text for a control with no candidate.
func genericSentence(c model.Control) string {
	name := strings.TrimSpace(c.ID)
	if t := strings.TrimSpace(c.Title); t != "" {
		name = fmt.Sprintf("%s (%s)", name, t)
	}
	return fmt.Sprintf("The organization implements %s through documented procedures and assigned responsibilities, and reviews the implementation annually.", name)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
