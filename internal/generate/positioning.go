package generate

import (
	"context"
	"fmt"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/llm"
	"negofactory/internal/nego"
	"negofactory/internal/refdata"
	"negofactory/internal/workflow"
)

// resolveProfile returns the supplier profile in play, assembling it
// from the warehouse when the turn only carries a name.
func (g *Generator) resolveProfile(ctx context.Context, req *workflow.Request) (*nego.SupplierProfile, error) {
	if req.Selected != nil && req.Selected.SupplierProfile != nil {
		return req.Selected.SupplierProfile, nil
	}
	if req.Pinned.SupplierProfile != nil {
		return req.Pinned.SupplierProfile, nil
	}
	name := req.SupplierName()
	if name == "" {
		return nil, nego.Userf("Please select a supplier first.")
	}
	prof, suggestion, err := g.profiles.Resolve(ctx, req.Category, name)
	if err != nil {
		return nil, err
	}
	if suggestion != nil {
		return nil, nego.Userf("We could not find the supplier %s in %s. Please select the supplier again.", name, req.Category)
	}
	return prof, nil
}

// CategoryPositioning derives the category positioning from the
// supplier's spend share and the category's market complexity, and
// lists the alternatives with the derived one first.
func (g *Generator) CategoryPositioning(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	prof, err := g.resolveProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	complexity := ""
	if row := req.Reference.StrategyFor(req.Category); row != nil {
		complexity = row.MarketComplexity
	}
	selected := refdata.CategoryPositioning(prof.PercentageSpendAcrossCategoryYTD, complexity)
	detail := refdata.CategoryPositioningDetail(selected)
	positions := refdata.CategoryPositionings(selected, detail)

	env := envelope.New("approach_cp",
		fmt.Sprintf("**Category positioning**: %s - %s", positions[0].Value, detail),
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentApproachCP, req.Pinned, req.UserQuery)))
	env.CategoryPositions = positions
	env.SelectedPositioning = positions[0].Value
	return env, nil
}

const supplierPositioningPrompt = `You are a procurement strategist. Given the
supplier profile below, pick the supplier positioning that fits best: one of
"Grow", "Core", "Ramp Down" or "Nuisance". Return JSON:
{"positioning": "...", "details": "one sentence tailored to this supplier"}.`

// SupplierPositioning recommends a supplier positioning. A positioning
// named in the query wins; otherwise the model picks from the profile,
// falling back to Core.
func (g *Generator) SupplierPositioning(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	prof, err := g.resolveProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	selected, detail := pickedPositioning(req.UserQuery)
	if selected == "" && g.model != nil {
		raw, err := g.model.GenerateJSON(ctx, supplierPositioningPrompt, prof)
		if err != nil {
			g.logger.Printf("generate: supplier positioning: %v", err)
		} else {
			obj := llm.ParseObject(raw)
			if p := llm.Str(obj, "positioning"); refdata.SupplierPositioningDetail(p) != "" {
				selected = p
				detail = llm.Str(obj, "details")
			}
		}
	}
	if selected == "" {
		selected = "Core"
	}
	if detail == "" {
		detail = refdata.SupplierPositioningDetail(selected)
	}
	positions := refdata.SupplierPositionOptions(selected, detail)

	env := envelope.New("approach_sp",
		fmt.Sprintf("**Supplier positioning**: %s - %s", positions[0].Value, detail),
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentApproachSP, req.Pinned, req.UserQuery)))
	env.SupplierPositions = positions
	env.SelectedPositioning = positions[0].Value
	return env, nil
}

// pickedPositioning spots an explicit supplier positioning in the query.
func pickedPositioning(query string) (string, string) {
	q := strings.ToLower(query)
	for _, name := range []string{"ramp down", "grow", "core", "nuisance"} {
		if strings.Contains(q, name) {
			return name, refdata.SupplierPositioningDetail(name)
		}
	}
	return "", ""
}

// BuyerAttractiveness asks whether the buyer is a strategic account for
// the supplier, or records the answer when the turn carries one.
func (g *Generator) BuyerAttractiveness(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	supplier := req.SupplierName()
	if supplier == "" {
		if prof, err := g.resolveProfile(ctx, req); err == nil {
			supplier = prof.SupplierName
		}
	}

	q := strings.ToLower(req.UserQuery)
	answered := strings.Contains(q, "strategic") || strings.Contains(q, "yes") || strings.Contains(q, "no")
	if !answered {
		return envelope.New("approach_bp",
			fmt.Sprintf("Is your account a strategic one for %s? This determines how much preferential treatment you can ask for.", supplier),
			envelope.WithPrompts([]nego.Prompt{
				{Prompt: "Strategic", Intent: workflow.IntentApproachBP},
				{Prompt: "Non-strategic", Intent: workflow.IntentApproachBP},
			})), nil
	}

	value := refdata.NormalizeBuyerAttractiveness(req.UserQuery)
	env := envelope.New("approach_bp",
		fmt.Sprintf("**Buyer positioning**: %s - %s", value, refdata.BuyerAttractivenessDetail(value)),
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentApproachBP, req.Pinned, req.UserQuery)))
	env.SelectedPositioning = value
	return env, nil
}

// TonesAndTactics looks up the tones for the pinned positioning pair.
func (g *Generator) TonesAndTactics(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	if env := workflow.TonePrereq(mergedPins(req)); env != nil {
		return env, nil
	}
	pins := mergedPins(req)
	supplierPos := pins.SupplierPositioning.Value
	buyerPos := refdata.NormalizeBuyerAttractiveness(pins.BuyerAttractiveness.Value)

	tones := req.Reference.TonesFor(supplierPos, buyerPos)
	if len(tones) == 0 {
		return nil, nego.Userf("No tone and tactics found for supplier positioning %s and buyer positioning %s.", supplierPos, buyerPos)
	}

	env := envelope.New("approach_tnt",
		fmt.Sprintf("Based on selected supplier positioning as **%s** and buyer positioning as **%s**, here are the recommended tones and tactics:", supplierPos, buyerPos),
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentApproachTNT, req.Pinned, req.UserQuery)))
	env.Tones = tones
	return env, nil
}

// CarrotsAndSticks lists the leverage reference split into carrots and
// sticks.
func (g *Generator) CarrotsAndSticks(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	carrots, sticks := req.Reference.CarrotsSticks()
	if len(carrots) == 0 && len(sticks) == 0 {
		return nil, nego.Userf("No carrot and stick reference data found for this tenant.")
	}
	env := envelope.New("select_carrot_sticks",
		"Here are the carrots and sticks you can leverage in this negotiation. Pin the ones you want to put on the table.",
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentSelectCarrotSticks, req.Pinned, req.UserQuery)))
	env.Carrots = carrots
	env.Sticks = sticks
	return env, nil
}

// mergedPins layers the turn's selections over the pinned state for the
// sections the approach handlers read.
func mergedPins(req *workflow.Request) *nego.PinnedElements {
	out := nego.PinnedElements{}
	if req.Pinned != nil {
		out = *req.Pinned
	}
	sel := req.Selected
	if sel == nil {
		return &out
	}
	if sel.SupplierPositioning != nil {
		out.SupplierPositioning = sel.SupplierPositioning
	}
	if sel.BuyerAttractiveness != nil {
		out.BuyerAttractiveness = sel.BuyerAttractiveness
	}
	if sel.CategoryPositioning != nil {
		out.CategoryPositioning = sel.CategoryPositioning
	}
	if sel.ToneAndTactics != nil {
		out.ToneAndTactics = sel.ToneAndTactics
	}
	if len(sel.NegotiationStrategy) > 0 {
		out.NegotiationStrategy = sel.NegotiationStrategy
	}
	return &out
}
