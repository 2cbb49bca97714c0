// Package assembler converts ranked search results into a token-budgeted
// text context for a language model.
//
// Entities are rendered as markdown sections, XML-style tags or plain text.
// Each entity's content is first shrunk to an allowance for its type
// (classes keep an outline, functions keep their signature) and then added
// in score order until the budget, less room reserved for the sources
// footer and suffix, is spent.
package assembler
