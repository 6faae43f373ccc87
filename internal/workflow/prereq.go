package workflow

import (
	"negofactory/internal/envelope"
	"negofactory/internal/nego"
)

// ArgumentPrereq verifies the pins an arguments-family turn depends on.
// A nil envelope means the prerequisite passed.
func ArgumentPrereq(intent string, pinned *nego.PinnedElements) *envelope.Envelope {
	prompts := ArgumentSectionPrompts(intent)

	needsObjectives := intent == IntentArgumentsNew || intent == IntentArgumentsModify ||
		intent == IntentArgumentsReply || intent == IntentCounterArguments || intent == IntentRebuttals
	if needsObjectives && !pinned.Has(nego.SectionObjectives) {
		corrective := append([]nego.Prompt{{Prompt: "Set negotiation objectives", Intent: IntentObjective}}, prompts...)
		var kept []nego.Prompt
		for _, p := range corrective {
			if p.Prompt == "Generate new arguments" || p.Prompt == "Reply to supplier arguments" {
				continue
			}
			kept = append(kept, p)
		}
		return envelope.New("general",
			"To effectively work with arguments, it's imperative to have objective pinned/selected. "+
				"Please select `Set negotiation objectives` to proceed further.",
			envelope.WithPrompts(Distinct(kept)))
	}

	if intent == IntentCounterArguments && !pinned.Has(nego.SectionArguments) {
		return envelope.New("general",
			"To effectively work with counter arguments, it's imperative to have argument pinned/selected. "+
				"Please select `Generate new arguments` to proceed further.",
			envelope.WithPrompts(prompts))
	}

	if intent == IntentRebuttalsModify && !pinned.Has(nego.SectionCounterArguments) {
		return envelope.New("general",
			"To effectively work with replies, it's imperative to have counter arguments pinned/selected. "+
				"Please select `Generate negotiation counter arguments` to proceed further.",
			envelope.WithPrompts(prompts))
	}
	return nil
}

// ArgumentSectionPrompts adapts the arguments-section CTA list to the
// sub-intent that just ran.
func ArgumentSectionPrompts(intent string) []nego.Prompt {
	prompts := SectionPrompts(SectionArgumentsName)
	switch intent {
	case IntentArgumentsNew:
		prompts = withoutPrompt(prompts, "Generate new arguments")
		prompts = append([]nego.Prompt{
			{Prompt: "Modify arguments", Intent: IntentArgumentsModify},
			{Prompt: "Generate negotiation counter arguments", Intent: IntentCounterArguments},
		}, prompts...)
	case IntentArgumentsModify:
		prompts = withoutPrompt(prompts, "Modify arguments")
		prompts = append([]nego.Prompt{
			{Prompt: "Generate negotiation counter arguments", Intent: IntentCounterArguments},
		}, prompts...)
	case IntentArgumentsReply:
		prompts = withoutPrompt(prompts, "Reply to supplier arguments")
		prompts = append([]nego.Prompt{
			{Prompt: "Modify reply to supplier arguments", Intent: IntentRebuttalsModify},
		}, prompts...)
	}
	return Distinct(prompts)
}

func withoutPrompt(prompts []nego.Prompt, text string) []nego.Prompt {
	var out []nego.Prompt
	for _, p := range prompts {
		if p.Prompt != text {
			out = append(out, p)
		}
	}
	return out
}

// OfferPrereq gates saving a latest offer: only reachable from the
// navigation CTA, and only with objectives pinned.
func OfferPrereq(fromCTA bool, pinned *nego.PinnedElements) *envelope.Envelope {
	if !fromCTA {
		return envelope.New("general",
			"Add/Save latest offer is possible through navigation section only.\n"+
				"Please click `+ Add Latest Offer` to add offers.")
	}
	if !pinned.Has(nego.SectionObjectives) {
		return envelope.New("general",
			"To effectively work with latest offer and next rounds, it's imperative to have objective pinned/selected.\n"+
				"Please take necessary actions to proceed further")
	}
	return nil
}

// FinishPrereq gates finishing the negotiation on pinned objectives.
func FinishPrereq(pinned *nego.PinnedElements) *envelope.Envelope {
	if !pinned.Has(nego.SectionObjectives) {
		return envelope.New("general",
			"To effectively finish the negotiation, it's imperative to have objective and latest offer to be pinned/selected.\n"+
				"Please take necessary actions to proceed further.")
	}
	return nil
}

// TonePrereq requires both positionings before tone & tactics.
func TonePrereq(pinned *nego.PinnedElements) *envelope.Envelope {
	var missing string
	switch {
	case !pinned.Has(nego.SectionSupplierPositioning) && !pinned.Has(nego.SectionBuyerAttractiveness):
		missing = "supplier positioning and buyer positioning"
	case !pinned.Has(nego.SectionSupplierPositioning):
		missing = "supplier positioning"
	case !pinned.Has(nego.SectionBuyerAttractiveness):
		missing = "buyer positioning"
	default:
		return nil
	}
	prompts := []nego.Prompt{}
	if !pinned.Has(nego.SectionSupplierPositioning) {
		prompts = append(prompts, nego.Prompt{Prompt: "Set supplier positioning", Intent: IntentApproachSP})
	}
	if !pinned.Has(nego.SectionBuyerAttractiveness) {
		prompts = append(prompts, nego.Prompt{Prompt: "Set buyer positioning", Intent: IntentApproachBP})
	}
	return envelope.New("general",
		"Please set "+missing+" before setting up tone and tactics.",
		envelope.WithPrompts(prompts))
}
