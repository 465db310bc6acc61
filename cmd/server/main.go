/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the property calendar: runs the HTTP API and the
  offline tools that share its configuration and store.

COMMANDS:
  serve        HTTP API + scheduled feed refresh (default)
  export       Write the event stream of a window as ICS or a JSON row dump
  import       Load a JSON row dump into the SQLite database
  event-types  Print the event type registry

STARTUP SEQUENCE (serve):
  1. Load configuration (YAML file, then PROPCAL_* env)
  2. Build the zap logger
  3. Open the SQLite store with a change bus
  4. Create calendar service and feed, subscribe the feed to the bus
  5. Configure HTTP router and refresh scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the bus and database connection

EXAMPLES:
  # Run with the default config file
  ./server serve

  # Run with in-memory database on another port
  PROPCAL_DB_PATH=":memory:" ./server serve --listen :3000

  # Export next month's inspections
  ./server export --from 2024-07-01 --to 2024-07-31 --type inspection -o july.ics

SEE ALSO:
  - root.go: Shared flags and wiring
  - api/server.go: Router configuration
  - config/config.go: Configuration sources
*/
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
