package clone

// Config collects parameters required by the clone orchestrator.
// It is a subset of the application config but lives in this package to avoid import cycles.
type Config struct {
	// Template is the blank database the target is created from.
	Template string

	// PostProcess statements run against the fresh clone, in order.
	// They deactivate scheduled jobs copied from the source.
	PostProcess []string
}

// DefaultTemplate never contains user data.
const DefaultTemplate = "template0"

// DefaultPostProcess deactivates every cron entry of the cloned database.
var DefaultPostProcess = []string{"UPDATE ir_cron SET active = false"}
