// Package generate holds the artifact generators behind each workflow
// intent: supplier selection, SKU scoping, insights, objectives,
// positioning, strategy, arguments, emails and round bookkeeping.
package generate

import (
	"log"

	"negofactory/internal/config"
	"negofactory/internal/export"
	"negofactory/internal/insights"
	"negofactory/internal/llm"
	"negofactory/internal/profile"
	"negofactory/internal/warehouse"
	"negofactory/internal/workflow"
)

// Generator carries the shared collaborators every handler needs.
type Generator struct {
	reader    warehouse.Reader
	profiles  *profile.Assembler
	extractor *insights.Extractor
	model     llm.Client
	fast      llm.Client
	retriever *llm.Retriever
	exporter  *export.Exporter
	cfg       config.ModelConfig
	logger    *log.Logger
}

// Deps are the collaborators for a Generator. Reader and Profiles are
// required; a nil model degrades generation to deterministic fallbacks
// and a nil retriever disables retrieval augmentation.
type Deps struct {
	Reader    warehouse.Reader
	Profiles  *profile.Assembler
	Extractor *insights.Extractor
	Model     llm.Client
	Fast      llm.Client
	Retriever *llm.Retriever
	Exporter  *export.Exporter
	Config    config.ModelConfig
	Logger    *log.Logger
}

func New(deps Deps) *Generator {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Generator{
		reader:    deps.Reader,
		profiles:  deps.Profiles,
		extractor: deps.Extractor,
		model:     deps.Model,
		fast:      deps.Fast,
		retriever: deps.Retriever,
		exporter:  deps.Exporter,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

// Register binds every handler to its intent.
func (g *Generator) Register(o *workflow.Orchestrator) {
	o.Register(workflow.IntentBegin, g.Begin)
	o.Register(workflow.IntentInit, g.Init)
	o.Register(workflow.IntentSelectSKUs, g.Scoping)
	o.Register(workflow.IntentInsights, g.Insights)
	o.Register(workflow.IntentObjective, g.Objectives)
	o.Register(workflow.IntentApproachCP, g.CategoryPositioning)
	o.Register(workflow.IntentApproachSP, g.SupplierPositioning)
	o.Register(workflow.IntentApproachBP, g.BuyerAttractiveness)
	o.Register(workflow.IntentApproachTNT, g.TonesAndTactics)
	o.Register(workflow.IntentSelectCarrotSticks, g.CarrotsAndSticks)
	o.Register(workflow.IntentStrategy, g.Strategy)
	o.Register(workflow.IntentStrategyChange, g.StrategyChange)
	o.Register(workflow.IntentArguments, g.Arguments)
	o.Register(workflow.IntentEmails, g.Emails)
	o.Register(workflow.IntentSummaryEmail, g.SummaryEmail)
	o.Register(workflow.IntentOffer, g.Offer)
	o.Register(workflow.IntentFinished, g.Finish)
	o.Register(workflow.IntentUserQuestions, g.UserAnswers)
	o.RegisterFallback(g.UserAnswers)
}
