// Package extract turns unreliable model output into an exam.Document.
//
// Model responses are supposed to be a JSON document but arrive wrapped in
// commentary, fenced in markdown, truncated, single-quoted, commented, or
// with bare keys and trailing commas. [Extractor.Extract] runs a fixed
// cascade over the response:
//
//  1. a self-reported upstream error ({"error": ...}) short-circuits to a failure;
//  2. [Isolate] narrows the text to the most plausible JSON span;
//  3. the span is parsed directly, then after [BasicRepair],
//     [AggressiveRepair] and [LineLevelRepair], each applied to the previous
//     stage's output, stopping at the first stage that parses;
//  4. if nothing parses, [Salvage] pattern-matches individual fields out of
//     the original text into a partial document;
//  5. otherwise a failure envelope carries a bounded preview of the input.
//
// Every outcome is a [Result]; malformed input never produces a Go error or
// a panic. The pipeline holds no state between calls and is safe for
// concurrent use.
package extract
