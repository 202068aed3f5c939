// Package lang implements the template language used to assemble stack
// files and the caching evaluator that renders it.
//
// A template is text interleaved with {{ expression }} prints,
// {% statement %} tags and {# comment #} blocks. Expressions are
// expr-lang programs. Each distinct template source is compiled once per
// [Cache], and the dependency paths it reads from its context are computed
// once at compile time by [Analyze]. [Evaluator] fingerprints the values at
// those paths so repeated evaluations against contexts that agree on them
// are served from the cache without rendering.
//
// A template made of exactly one print statement evaluates to the native
// value of its expression rather than to its string form, so predicate
// templates produce booleans and configuration templates may produce maps,
// lists and numbers.
package lang
