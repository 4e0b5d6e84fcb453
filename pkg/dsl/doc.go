/*
Package dsl provides a fluent Go builder for robot programs.

Programs normally arrive from the coordination server as JSON. The builder produces the same
ast.Program in code, which is useful for unit tests, local runs and tooling.

Example usage:

	b := dsl.New()

	b.Call("variable", dsl.Text("x"), dsl.Number(5))
	b.Call("loop", dsl.Number(3)).
		Do(dsl.Call("say", dsl.Var("x")).ID("blk-2"))

	program := b.Build()
	// ... pass program to runtime.Engine.Run
*/
package dsl
