package workflow

import (
	"strings"

	"negofactory/internal/nego"
)

// Workflow steps in order. Each name doubles as the pinned-section key
// the step fills.
var workflowOrder = []string{
	nego.SectionSupplierProfile,
	nego.SectionSKUs,
	nego.SectionInsights,
	nego.SectionObjectives,
	nego.SectionArguments,
	nego.SectionCounterArguments,
	nego.SectionRebuttals,
	nego.SectionEmails,
}

// strategyOrder is the positioning-and-strategy side flow.
var strategyOrder = []string{
	nego.SectionObjectives,
	nego.SectionCategoryPositioning,
	nego.SectionSupplierPositioning,
	nego.SectionBuyerAttractiveness,
	nego.SectionToneAndTactics,
	nego.SectionCarrots,
	nego.SectionNegotiationStrategy,
	nego.SectionArguments,
}

// stepCTA maps each workflow step to its call-to-action.
var stepCTA = map[string]nego.Prompt{
	nego.SectionSKUs:                {Prompt: "Select SKUs", Intent: IntentSelectSKUs},
	nego.SectionInsights:            {Prompt: "Generate negotiation insights", Intent: IntentInsights},
	nego.SectionObjectives:          {Prompt: "Set negotiation objectives", Intent: IntentObjective},
	nego.SectionCategoryPositioning: {Prompt: "Set category positioning", Intent: IntentApproachCP},
	nego.SectionSupplierPositioning: {Prompt: "Set supplier positioning", Intent: IntentApproachSP},
	nego.SectionBuyerAttractiveness: {Prompt: "Set buyer positioning", Intent: IntentApproachBP},
	nego.SectionToneAndTactics:      {Prompt: "Set tone & tactics", Intent: IntentApproachTNT},
	nego.SectionCarrots:             {Prompt: "Set carrots & sticks", Intent: IntentSelectCarrotSticks},
	nego.SectionNegotiationStrategy: {Prompt: "Set sourcing approach", Intent: IntentStrategy},
	nego.SectionArguments:           {Prompt: "Generate negotiation arguments", Intent: IntentArguments},
	nego.SectionCounterArguments:    {Prompt: "Generate negotiation counter arguments", Intent: IntentCounterArguments},
	nego.SectionRebuttals:           {Prompt: "Reply to supplier arguments", Intent: IntentArgumentsReply},
	nego.SectionEmails:              {Prompt: "Generate email to supplier", Intent: IntentEmails},
}

var replyToSupplierEmailPrompt = nego.Prompt{
	Prompt: "Reply to supplier email",
	Intent: IntentEmailsReply,
}

// Section names for the static per-section CTA tables.
const (
	SectionSelectSupplier = "Select Supplier"
	SectionObjectivesName = "Select Negotiation Objectives"
	SectionApproachName   = "Create Negotiation Approach"
	SectionStrategyName   = "Define Negotiation Strategy"
	SectionArgumentsName  = "Generate Arguments"
	SectionEmailsName     = "Generate Emails"
)

// sectionCTAs is the hand-authored section to default-prompts table.
var sectionCTAs = map[string][]nego.Prompt{
	SectionSelectSupplier: {
		{Prompt: "Show me top 10 suppliers", Intent: IntentInit},
		{Prompt: "Show me top 10 suppliers in tail spend", Intent: IntentInit},
		{Prompt: "Show me suppliers with highest single source spend", Intent: IntentInit},
		{Prompt: "Show me suppliers with spend without PO", Intent: IntentInit},
		{Prompt: "Show me suppliers with largest year over year spend gap", Intent: IntentInit},
		{Prompt: "Show me top suppliers by saving opportunity", Intent: IntentInit},
	},
	SectionObjectivesName: {
		{Prompt: "Generate negotiation insights", Intent: IntentInsights},
		{Prompt: "Set negotiation objectives", Intent: IntentObjective},
	},
	SectionApproachName: {
		{Prompt: "Set category positioning", Intent: IntentApproachCP},
		{Prompt: "Change category positioning", Intent: IntentStrategyChange},
		{Prompt: "Set supplier positioning", Intent: IntentApproachSP},
		{Prompt: "Change supplier positioning", Intent: IntentStrategyChange},
		{Prompt: "Set buyer positioning", Intent: IntentApproachBP},
		{Prompt: "Change buyer positioning", Intent: IntentApproachBP},
		{Prompt: "Set sourcing approach", Intent: IntentStrategy},
		{Prompt: "Change sourcing approach", Intent: IntentStrategyChange},
		{Prompt: "Change market approach", Intent: IntentStrategyChange},
		{Prompt: "Change pricing methodology", Intent: IntentStrategyChange},
		{Prompt: "Change contracting methodology", Intent: IntentStrategyChange},
		{Prompt: "Set tone & tactics", Intent: IntentApproachTNT},
		{Prompt: "Change tone & tactics", Intent: IntentApproachTNT},
		{Prompt: "Set carrots & sticks", Intent: IntentSelectCarrotSticks},
		{Prompt: "Change carrots & sticks", Intent: IntentSelectCarrotSticks},
	},
	SectionArgumentsName: {
		{Prompt: "Generate new arguments", Intent: IntentArgumentsNew},
		{Prompt: "Reply to supplier arguments", Intent: IntentArgumentsReply},
	},
}

// SectionPrompts returns a copy of the section's default CTA list.
func SectionPrompts(sectionName string) []nego.Prompt {
	return append([]nego.Prompt(nil), sectionCTAs[sectionName]...)
}

// WorkflowOptions tune successor-prompt computation.
type WorkflowOptions struct {
	// SkipProfileCheck suppresses the supplier-profile gate.
	SkipProfileCheck bool
	// IncludeInsights appends the insights CTA when the flow is at its
	// very beginning.
	IncludeInsights bool
	// CurrentStep is excluded from the suggestions.
	CurrentStep string
	// StrategyFlow walks the positioning flow instead of the main one.
	StrategyFlow bool
}

// WorkflowPrompts computes the next-step CTAs: the first unfilled step
// after the last pinned one, skipping the step just completed. Email
// suggestions always carry the reply-to-supplier variant.
func WorkflowPrompts(pinned *nego.PinnedElements, opts WorkflowOptions) []nego.Prompt {
	if !opts.SkipProfileCheck && !pinned.Has(nego.SectionSupplierProfile) {
		return nil
	}
	order := workflowOrder
	if opts.StrategyFlow {
		order = strategyOrder
	}

	var prompts []nego.Prompt
	for _, step := range order {
		if pinned.Has(step) || step == nego.SectionSupplierProfile {
			continue
		}
		if step == opts.CurrentStep {
			continue
		}
		cta, ok := stepCTA[step]
		if !ok {
			continue
		}
		prompts = append(prompts, cta)
		if step == nego.SectionEmails {
			prompts = append(prompts, replyToSupplierEmailPrompt)
		}
		break
	}
	if opts.IncludeInsights && !pinned.Has(nego.SectionInsights) {
		prompts = append(prompts, stepCTA[nego.SectionInsights])
	}
	return Distinct(prompts)
}

// Distinct removes duplicate prompts preserving first occurrence.
func Distinct(prompts []nego.Prompt) []nego.Prompt {
	var out []nego.Prompt
	for _, p := range prompts {
		dup := false
		for _, seen := range out {
			if seen == p {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// setOrChange picks the satisfied variant of a Set/Change prompt pair
// for the remove list: when the section is pinned the "Set" prompt is
// stale, otherwise the "Change" one is.
func setOrChange(pinned bool, name string) string {
	if pinned {
		return "Set " + name
	}
	return "Change " + name
}

var sourcingApproachGroup = []string{
	"Change market approach",
	"Change pricing methodology",
	"Change contracting methodology",
}

// PromptsToRemove computes which approach-section prompts are stale for
// the turn, per the positioning/sourcing pin state and the intent.
func PromptsToRemove(generationType string, pinned *nego.PinnedElements, userQuery string) []string {
	catPinned := pinned.Has(nego.SectionCategoryPositioning)
	supPinned := pinned.Has(nego.SectionSupplierPositioning)
	buyPinned := pinned.Has(nego.SectionBuyerAttractiveness)
	strategyPinned := pinned.Has(nego.SectionNegotiationStrategy)
	tonePinned := pinned.Has(nego.SectionToneAndTactics)
	leveragePinned := pinned.Has(nego.SectionCarrots) || pinned.Has(nego.SectionSticks)

	var remove []string
	switch generationType {
	case IntentApproachCP:
		remove = append(remove,
			"Set category positioning",
			setOrChange(supPinned, "supplier positioning"),
			setOrChange(buyPinned, "buyer positioning"),
			setOrChange(leveragePinned, "carrots & sticks"),
		)
	case IntentApproachSP:
		remove = append(remove,
			setOrChange(catPinned, "category positioning"),
			"Set supplier positioning",
			setOrChange(buyPinned, "buyer positioning"),
			setOrChange(leveragePinned, "carrots & sticks"),
		)
	case IntentApproachBP:
		remove = append(remove,
			"Set buyer positioning",
			"Change buyer positioning",
			setOrChange(catPinned, "category positioning"),
			setOrChange(supPinned, "supplier positioning"),
		)
	case IntentSelectCarrotSticks:
		carrotVariant := "Set carrots & sticks"
		if strings.Contains(strings.ToLower(userQuery), "change ") {
			carrotVariant = "Change carrots & sticks"
		}
		remove = append(remove,
			"Set carrots & sticks",
			carrotVariant,
			setOrChange(catPinned, "category positioning"),
			setOrChange(supPinned, "supplier positioning"),
			setOrChange(buyPinned, "buyer positioning"),
		)
	default:
		remove = append(remove,
			setOrChange(catPinned, "category positioning"),
			setOrChange(supPinned, "supplier positioning"),
			setOrChange(buyPinned, "buyer positioning"),
			setOrChange(leveragePinned, "carrots & sticks"),
		)
	}

	if strategyPinned {
		remove = append(remove, "Set sourcing approach")
	} else if generationType == IntentStrategy {
		remove = append(remove,
			"Set sourcing approach", "Change sourcing approach",
			"Set category positioning", "Change category positioning",
			"Set supplier positioning", "Change supplier positioning",
			"Set buyer positioning", "Change buyer positioning",
		)
	} else {
		remove = append(remove, sourcingApproachGroup...)
	}

	remove = append(remove, setOrChange(tonePinned, "tone & tactics"))

	if generationType == IntentStrategyChange {
		remove = []string{
			setOrChange(catPinned, "category positioning"),
			setOrChange(supPinned, "supplier positioning"),
			setOrChange(buyPinned, "buyer positioning"),
			setOrChange(strategyPinned, "sourcing approach"),
			setOrChange(tonePinned, "tone & tactics"),
		}
		remove = append(remove, sourcingApproachGroup...)
	}

	// "change to <X>" and "change sourcing" turns are pure prompt
	// changes: everything positioning-related is stale.
	if generationType == IntentStrategy || generationType == IntentStrategyChange {
		q := strings.ToLower(userQuery)
		if strings.Contains(q, "change sourcing") || strings.Contains(q, "change to ") {
			remove = []string{
				"Set category positioning", "Change category positioning",
				"Set supplier positioning", "Change supplier positioning",
				"Set buyer positioning", "Change buyer positioning",
				"Set sourcing approach", "Change sourcing approach",
				setOrChange(tonePinned, "tone & tactics"),
			}
		}
	}
	return remove
}

// ApproachPrompts is the approach-section default list with stale
// prompts removed, deduplicated.
func ApproachPrompts(generationType string, pinned *nego.PinnedElements, userQuery string) []nego.Prompt {
	remove := PromptsToRemove(generationType, pinned, userQuery)
	var out []nego.Prompt
	for _, p := range SectionPrompts(SectionApproachName) {
		stale := false
		for _, r := range remove {
			if p.Prompt == r {
				stale = true
				break
			}
		}
		if !stale {
			out = append(out, p)
		}
	}
	return Distinct(out)
}
