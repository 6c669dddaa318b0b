// Package tools holds the concrete tool implementations the catalog
// agents use: stock quotes, Hacker News headlines, web search, weather
// lookups, a calculator, and knowledge-base retrieval.
//
// Tool functions return a single string; failures are reported as
// readable text so the model can react to them instead of the run
// aborting. HTTP-backed tools carry their client and base URL as
// fields so tests can point them at a local server.
package tools
