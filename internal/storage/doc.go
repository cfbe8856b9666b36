// Package storage persists record collections as whole-file JSON lists.
//
// Every operation loads the entire file, lets the caller mutate the slice and
// rewrites the file atomically. Records are validated after decode so that a
// malformed file is reported at the store boundary instead of downstream.
package storage
