// Command advisorctl inspects and repairs usage ledgers from the shell.
package main

func main() {
	Execute()
}
