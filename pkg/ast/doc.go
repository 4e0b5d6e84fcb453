// Package ast defines the block-structured program tree the coordination server sends to a robot.
//
// Node and token kinds are decoded once, at ingestion, into typed enums. The server emits them either
// as names ("Function", "Number") or as enum ordinals; both forms are accepted. After decoding, a
// Program is treated as immutable: the interpreter only reads it.
package ast
