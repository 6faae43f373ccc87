package workflow

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"negofactory/internal/history"
)

// The closed intent set. Response types drop the "negotiation_" prefix.
const (
	IntentBegin              = "negotiation_begin"
	IntentInit               = "negotiation_init"
	IntentSelectSKUs         = "negotiation_select_skus"
	IntentInsights           = "negotiation_insights"
	IntentObjective          = "negotiation_objective"
	IntentApproachCP         = "negotiation_approach_cp"
	IntentApproachSP         = "negotiation_approach_sp"
	IntentApproachBP         = "negotiation_approach_bp"
	IntentApproachTNT        = "negotiation_approach_tnt"
	IntentSelectCarrotSticks = "negotiation_select_carrot_sticks"
	IntentStrategy           = "negotiation_strategy"
	IntentStrategyChange     = "negotiation_strategy_change"
	IntentArguments          = "negotiation_arguments"
	IntentArgumentsNew       = "negotiation_arguments_new"
	IntentArgumentsModify    = "negotiation_arguments_modify"
	IntentArgumentsReply     = "negotiation_arguments_reply"
	IntentCounterArguments   = "negotiation_counter_arguments"
	IntentRebuttals          = "negotiation_rebuttals"
	IntentRebuttalsModify    = "negotiation_rebuttals_modify"
	IntentEmails             = "negotiation_emails"
	IntentEmailsReply        = "negotiation_emails_reply_to_supplier"
	IntentSummaryEmail       = "negotiation_summary_email"
	IntentOffer              = "negotiation_offer"
	IntentFinished           = "negotiation_finished"
	IntentUserQuestions      = "negotiation_user_questions"
	IntentClearChat          = "clear_chat"
)

// probableIntents maps a previous response type to the intent the next
// free-text turn most likely continues with.
var probableIntents = map[string]string{
	"arguments_modify":                     IntentArguments,
	"arguments_reply":                      IntentRebuttals,
	"counter_arguments_modify":             IntentCounterArguments,
	"rebuttals_modify":                     IntentRebuttals,
	"negotiation_counter_arguments_reply":  IntentRebuttals,
	"negotiation_emails":                   IntentEmails,
	"negotiation_emails_continue":          IntentEmails,
	"negotiation_emails_reply_to_supplier": IntentEmails,
	"negotiation_emails_new":               IntentEmails,
	"negotiation_emails_modify":            IntentEmails,
}

// ProbableIntent guesses the intent of an untyped turn from the
// previous response type, empty when there is no strong signal.
func ProbableIntent(previousResponseType string) string {
	return probableIntents[previousResponseType]
}

// ctaArgumentMap pairs each arguments-family intent with its CTA text
// for fuzzy matching of free-text queries.
var ctaArgumentMap = []struct {
	intent string
	cta    string
}{
	{IntentArgumentsNew, "Generate new arguments"},
	{IntentArgumentsModify, "Modify arguments"},
	{IntentArgumentsReply, "Reply to supplier arguments"},
	{IntentCounterArguments, "Generate negotiation counter arguments"},
	{IntentRebuttalsModify, "Modify reply to supplier arguments"},
}

// ResolveArgumentIntent narrows a generic arguments/rebuttals intent to
// a specific sub-intent: first by the most recent specific response
// type in history, then by fuzzy-matching the query against the CTA
// texts. Still-ambiguous turns default to generating new arguments.
func ResolveArgumentIntent(intent, userQuery string, turns []history.Turn, threshold int) string {
	switch intent {
	case IntentArguments, IntentRebuttals, IntentCounterArguments:
	default:
		return intent
	}

	for i := len(turns) - 1; i >= 0; i-- {
		rt := turns[i].ResponseType
		if rt == "" {
			continue
		}
		if !strings.Contains(rt, "argument") && !strings.Contains(rt, "rebuttal") {
			continue
		}
		if strings.HasSuffix(rt, "_new") || strings.HasSuffix(rt, "_reply") || strings.HasSuffix(rt, "_modify") {
			if next := ProbableIntent(rt); next != "" && next != IntentArguments && next != IntentEmails {
				return next
			}
			if strings.HasPrefix(rt, "negotiation_") {
				return rt
			}
			return "negotiation_" + rt
		}
	}

	best, bestScore := "", 0
	for _, entry := range ctaArgumentMap {
		score := fuzzy.TokenSetRatio(strings.ToLower(userQuery), strings.ToLower(entry.cta))
		if score > bestScore {
			best, bestScore = entry.intent, score
		}
	}
	if bestScore >= threshold && best != "" {
		return best
	}

	switch intent {
	case IntentCounterArguments:
		return IntentCounterArguments
	case IntentRebuttals:
		return IntentRebuttals
	}
	return IntentArgumentsNew
}

// ResponseType strips the workflow prefix from an intent.
func ResponseType(intent string) string {
	return strings.TrimPrefix(intent, "negotiation_")
}
