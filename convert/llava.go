// llava.go - Eingebaute Umbenennungsregeln fuer das LLaVA Sprachmodell
// Uebersetzt HuggingFace Parameter-Namen in das Llama-Transformer Schema.
package convert

import (
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"
)

// NestedLanguageModelVersion ist die erste transformers-Version, die das
// Sprachmodell unter model.language_model.* speichert. Aeltere Checkpoints
// verwenden language_model.model.*.
const NestedLanguageModelVersion = "v4.52.0"

// llavaTextRules maps HuggingFace LLaVA language model names to the llama
// transformer layout. model.embed_tokens is intentionally left alone.
var llavaTextRules = []string{
	`model\.language_model\.layers\.([0-9]+)\.self_attn\.q_proj\.`, `layers.$1.attention.wq.`,
	`model\.language_model\.layers\.([0-9]+)\.self_attn\.k_proj\.`, `layers.$1.attention.wk.`,
	`model\.language_model\.layers\.([0-9]+)\.self_attn\.v_proj\.`, `layers.$1.attention.wv.`,
	`model\.language_model\.layers\.([0-9]+)\.self_attn\.o_proj\.`, `layers.$1.attention.wo.`,
	`model\.language_model\.layers\.([0-9]+)\.input_layernorm\.`, `layers.$1.attention_norm.`,
	`model\.language_model\.layers\.([0-9]+)\.mlp\.gate_proj\.`, `layers.$1.feed_forward.w1.`,
	`model\.language_model\.layers\.([0-9]+)\.mlp\.down_proj\.`, `layers.$1.feed_forward.w2.`,
	`model\.language_model\.layers\.([0-9]+)\.mlp\.up_proj\.`, `layers.$1.feed_forward.w3.`,
	`model\.language_model\.layers\.([0-9]+)\.post_attention_layernorm\.`, `layers.$1.ffn_norm.`,
	`model\.language_model\.norm\.`, `norm.`,
	`lm_head\.`, `output.`,
}

// legacyLlavaTextRules covers checkpoints written before the nested layout.
var legacyLlavaTextRules = []string{
	`language_model\.model\.layers\.([0-9]+)\.self_attn\.q_proj\.`, `layers.$1.attention.wq.`,
	`language_model\.model\.layers\.([0-9]+)\.self_attn\.k_proj\.`, `layers.$1.attention.wk.`,
	`language_model\.model\.layers\.([0-9]+)\.self_attn\.v_proj\.`, `layers.$1.attention.wv.`,
	`language_model\.model\.layers\.([0-9]+)\.self_attn\.o_proj\.`, `layers.$1.attention.wo.`,
	`language_model\.model\.layers\.([0-9]+)\.input_layernorm\.`, `layers.$1.attention_norm.`,
	`language_model\.model\.layers\.([0-9]+)\.mlp\.gate_proj\.`, `layers.$1.feed_forward.w1.`,
	`language_model\.model\.layers\.([0-9]+)\.mlp\.down_proj\.`, `layers.$1.feed_forward.w2.`,
	`language_model\.model\.layers\.([0-9]+)\.mlp\.up_proj\.`, `layers.$1.feed_forward.w3.`,
	`language_model\.model\.layers\.([0-9]+)\.post_attention_layernorm\.`, `layers.$1.ffn_norm.`,
	`language_model\.model\.norm\.`, `norm.`,
	`language_model\.lm_head\.`, `output.`,
}

// TransformersSemver turns a transformers_version value such as "4.44.2" or
// "4.53.0.dev0" into a semver string ("v4.44.2", "v4.53.0-dev0"). It returns
// "" when v can't be read.
func TransformersSemver(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return ""
	}

	parts := strings.SplitN(v, ".", 4)
	sv := "v" + strings.Join(parts[:min(3, len(parts))], ".")
	if len(parts) == 4 {
		sv += "-" + parts[3]
	}
	return semver.Canonical(sv)
}

// LegacyLlavaTextRules returns the rules for checkpoints saved by
// transformers older than NestedLanguageModelVersion.
func LegacyLlavaTextRules() Rules {
	return MustParseRules(legacyLlavaTextRules...)
}

// LlavaTextRulesFor picks the rule set matching the checkpoint layout of the
// transformers version that wrote it. Unknown versions get the current layout.
func LlavaTextRulesFor(transformersVersion string) Rules {
	v := TransformersSemver(transformersVersion)
	switch {
	case v == "":
		if transformersVersion != "" {
			slog.Warn("unreadable transformers_version, assuming nested layout", "version", transformersVersion)
		}
		return LlavaTextRules()
	case semver.Compare(v, NestedLanguageModelVersion) < 0:
		slog.Debug("using legacy llava rules", "transformers", v)
		return LegacyLlavaTextRules()
	default:
		return LlavaTextRules()
	}
}

// LlavaTextRules returns the rule set used when exporting the LLaVA text model.
func LlavaTextRules() Rules {
	return MustParseRules(llavaTextRules...)
}
