// Command autocoder drives THE CORE scheduler: it resolves dependencies
// among a project's features, spawns coding and testing agents to work
// through them, and retries failures up to a fixed budget.
package main

func main() {
	Execute()
}
