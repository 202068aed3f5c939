// Package config loads, merges, and serializes layered configuration
// documents.
//
// A document is a tree of [Map], []any, and scalar leaves. Documents are
// combined with [Merge], where later documents take precedence and nested
// maps are merged recursively. Everything else is replaced wholesale.
package config
