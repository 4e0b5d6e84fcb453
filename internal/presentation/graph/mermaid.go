package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/botlink/pkg/ast"
)

// GraphOverlay contains run data to visualize on the graph, keyed by block source id.
type GraphOverlay struct {
	VisitedBlocks []string
	CurrentBlock  string
}

// Shapes reports how a function call is drawn. Nil means every call is a rectangle.
type Shapes func(name string) Shape

type Shape int

const (
	ShapeStep Shape = iota
	ShapeTrigger
	ShapeBranch
	ShapeDefinition
)

// DefaultShapes knows the interpreter's registration, control-flow and definition functions.
func DefaultShapes(name string) Shape {
	switch name {
	case "start", "frontButton", "middleButton", "rearButton", "chestButton", "wordRecognised":
		return ShapeTrigger
	case "if", "elseif", "else", "loop", "while":
		return ShapeBranch
	case "function":
		return ShapeDefinition
	}
	return ShapeStep
}

type builder struct {
	sb      strings.Builder
	shapes  Shapes
	counter int
	ids     map[string]string
}

// GenerateMermaid produces a Mermaid flowchart of a program.
// It applies semantic styling:
// - Trigger registration: ((Circle))
// - Control flow: {Diamond}
// - Function definition: [[Subroutine]]
// - Default: [Rectangle]
// Top-level statements are chained in order; a block's children hang off it with a "do" edge.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(p *ast.Program, shapes Shapes, overlay *GraphOverlay) string {
	if shapes == nil {
		shapes = func(string) Shape { return ShapeStep }
	}
	b := &builder{shapes: shapes, ids: map[string]string{}}
	b.sb.WriteString("graph TD\n")

	if p != nil {
		b.chain(p.Nodes, "", "")
	}

	// Apply Overlay Styles
	if overlay != nil {
		b.sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		b.sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		b.sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, block := range overlay.VisitedBlocks {
			id, ok := b.ids[block]
			if ok && !seen[id] {
				seen[id] = true
				fmt.Fprintf(&b.sb, "    class %s visited;\n", id)
			}
		}
		if id, ok := b.ids[overlay.CurrentBlock]; ok {
			fmt.Fprintf(&b.sb, "    class %s current;\n", id)
		}
	}

	return b.sb.String()
}

// chain draws nodes in order, linking the first one from parent with label.
func (b *builder) chain(nodes []*ast.Node, parent, label string) {
	prev := parent
	for i, n := range nodes {
		if n == nil {
			continue
		}
		id := b.node(n)
		switch {
		case prev == "":
		case i == 0 && label != "":
			fmt.Fprintf(&b.sb, "    %s -- \"%s\" --> %s\n", prev, label, id)
		default:
			fmt.Fprintf(&b.sb, "    %s --> %s\n", prev, id)
		}
		if len(n.Children) > 0 {
			b.chain(n.Children, id, "do")
		}
		prev = id
	}
}

func (b *builder) node(n *ast.Node) string {
	b.counter++
	id := fmt.Sprintf("n%d", b.counter)
	if n.SourceID != "" {
		id = "b_" + sanitizeMermaidID(n.SourceID)
		b.ids[n.SourceID] = id
	}

	opener, closer := "[", "]"
	if n.Kind == ast.NodeFunction {
		switch b.shapes(n.Name()) {
		case ShapeTrigger:
			opener, closer = "((", "))" // Circle
		case ShapeBranch:
			opener, closer = "{", "}" // Diamond
		case ShapeDefinition:
			opener, closer = "[[", "]]" // Subroutine
		}
	}

	fmt.Fprintf(&b.sb, "    %s%s\"%s\"%s\n", id, opener, label(n), closer)
	return id
}

// label is the call with its arguments, quotes swapped for Mermaid.
func label(n *ast.Node) string {
	text := n.Name()
	if len(n.Arguments) > 0 {
		args := make([]string, len(n.Arguments))
		for i, arg := range n.Arguments {
			args[i] = ast.Format(arg, ast.FormatOptions{})
		}
		text += " " + strings.Join(args, ", ")
	}
	return strings.ReplaceAll(text, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
