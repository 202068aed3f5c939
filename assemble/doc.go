// Package assemble renders a template against the merged content of layered
// configuration documents.
//
// An assembly pass loads every configuration document in order, decrypts the
// secret documents, merges the result and then resolves the string values
// that are themselves templates. Those values may refer to each other; they
// are evaluated in dependency order so that each one sees the resolved form
// of everything it reads. The fully resolved configuration is the context
// the main template is rendered against.
package assemble
