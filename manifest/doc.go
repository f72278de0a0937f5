// Package manifest parses YAML prompt manifests into safeclick.ChatPromptTemplate values.
//
// Besides messages and variables a manifest declares the answer shape: either a
// response_format JSON schema or an ordered list of bracketed section tags, and
// whether the answer should be grounded in web search.
package manifest
