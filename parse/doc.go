// Package parse reads C declarations and records the structs, unions,
// typedefs and enums they declare, so tools can inspect field names,
// types and the comments written next to them. Prototypes and global
// variables with external linkage are recorded too.
//
// Function bodies and initializers are accepted and skipped. Macros and
// conditionals have already been handled by the cpp package.
//
//
// Glossary:
//
// Declarator
// ----------
//
// A declarator is the part of a declaration that specifies
// the name that is to be introduced into the program.
//
// e.g.
// unsigned int a, *b, **c, *const*d *volatile*e ;
//              ^  ^^  ^^^  ^^^^^^^^ ^^^^^^^^^^^
//
// Direct Declarator
// -----------------
//
// A direct declarator is missing the pointer prefix.
//
// e.g.
// unsigned int a[32], b[];
//              ^^^^^  ^^^
//
// Abstract Declarator
// -------------------
//
// A declarator missing an identifier.
//
// Annotation
// ----------
//
// The comment after a field on the line of its ';'.
//
// e.g.
// char *byte; // This is a pointer to a single byte
//             ^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^
package parse
