// CarPool routes AI tasks to the best-fit model provider and keeps an
// append-only, hash-chained credit ledger.
//
// Usage:
//
//	# Start the HTTP API with default configuration
//	carpool serve
//
//	# Start with a configuration file
//	carpool serve --config /etc/carpool/config.yaml
//
//	# Pick a model for a task
//	carpool route "write a python function that parses CSV" --providers openai,anthropic
//
//	# Grant credits and check a balance
//	carpool ledger grant --to user:alice --amount 100
//	carpool ledger balance user:alice
//
//	# Verify the whole chain
//	carpool ledger verify
package main

func main() {
	Execute()
}
