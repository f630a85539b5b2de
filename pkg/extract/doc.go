// Package extract turns a free-text architecture description into a graph
// payload.
//
// Two generators exist. The keyword [Stub] is deterministic and always
// succeeds: it scans the text for zone and component keywords and builds a
// small valid graph from them. The model-backed generator prompts an LLM
// (any [llms.Model] from github.com/tmc/langchaingo) for schema-conforming
// JSON and validates the answer.
//
// # Repair loop
//
// A model answer that fails validation is sent back together with the
// validation messages, at most [MaxRepairAttempts] times. When the model is
// unavailable, answers with something that is not JSON, or is still invalid
// after the last repair, extraction ends in the fallback state and returns
// the stub graph plus the collected errors. [Extractor.Extract] therefore
// always yields a usable graph for valid input text.
//
// Results are cached by text hash and request options when a cache is
// configured.
package extract
