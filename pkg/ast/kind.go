package ast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeKind is the shape of a node.
type NodeKind int

const (
	NodeEmpty NodeKind = iota
	NodeFunction
	NodeCompound
	NodeConstant
	NodeVariable
	NodeInvalid
)

var nodeKindNames = [...]string{
	NodeEmpty:    "Empty",
	NodeFunction: "Function",
	NodeCompound: "Compound",
	NodeConstant: "Constant",
	NodeVariable: "Variable",
	NodeInvalid:  "Invalid",
}

func (k NodeKind) String() string {
	if k < 0 || int(k) >= len(nodeKindNames) {
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
	return nodeKindNames[k]
}

// MarshalJSON writes the kind by name.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts a name (case-insensitive) or an ordinal.
// Anything unrecognised decodes as NodeInvalid so the interpreter can report it.
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	idx, err := decodeEnum(data, nodeKindNames[:])
	if err != nil {
		return fmt.Errorf("node kind: %w", err)
	}
	if idx < 0 {
		*k = NodeInvalid
		return nil
	}
	*k = NodeKind(idx)
	return nil
}

// TokenKind is the type of a token. The ordinals match the server's scanner.
type TokenKind int

const (
	TokenIllegal TokenKind = iota
	TokenEOF
	TokenWhitespace
	TokenIdentifier
	TokenNumber
	TokenNewline
	TokenOpenBrace
	TokenCloseBrace
	TokenOpenBracket
	TokenCloseBracket
	TokenComma
	TokenText
	TokenConstant
	TokenSourceID
	TokenVariable
	TokenBoolean
	TokenGenerated
	TokenColour
	TokenEmpty
)

var tokenKindNames = [...]string{
	TokenIllegal:      "Illegal",
	TokenEOF:          "EOF",
	TokenWhitespace:   "Whitespace",
	TokenIdentifier:   "Identifier",
	TokenNumber:       "Number",
	TokenNewline:      "Newline",
	TokenOpenBrace:    "OpenBrace",
	TokenCloseBrace:   "CloseBrace",
	TokenOpenBracket:  "OpenBracket",
	TokenCloseBracket: "CloseBracket",
	TokenComma:        "Comma",
	TokenText:         "Text",
	TokenConstant:     "Constant",
	TokenSourceID:     "SourceID",
	TokenVariable:     "Variable",
	TokenBoolean:      "Boolean",
	TokenGenerated:    "Generated",
	TokenColour:       "Colour",
	TokenEmpty:        "Empty",
}

func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(tokenKindNames) {
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
	return tokenKindNames[k]
}

// MarshalJSON writes the kind by name.
func (k TokenKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts a name (case-insensitive) or an ordinal.
func (k *TokenKind) UnmarshalJSON(data []byte) error {
	idx, err := decodeEnum(data, tokenKindNames[:])
	if err != nil {
		return fmt.Errorf("token kind: %w", err)
	}
	if idx < 0 {
		*k = TokenIllegal
		return nil
	}
	*k = TokenKind(idx)
	return nil
}

// decodeEnum returns the index of the named or numbered value, or -1 when it is out of range.
func decodeEnum(data []byte, names []string) (int, error) {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return 0, err
		}
		for i, n := range names {
			if strings.EqualFold(n, name) {
				return i, nil
			}
		}
		return -1, nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	if n < 0 || n >= len(names) {
		return -1, nil
	}
	return n, nil
}
