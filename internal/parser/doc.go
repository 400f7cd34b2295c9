// Package parser turns the raw text of a link list into an ordered
// CandidateList. Three dialects are supported:
//
//   - plain: one URL per line
//   - csv: a spreadsheet export with one quoted field per line
//   - markdown: link destinations and autolinks of a Markdown document
//
// Candidate order always follows the order of the input, which the
// sequential strategy relies on for stable indexing.
package parser
